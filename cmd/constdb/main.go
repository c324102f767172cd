// Command constdb serves constdb databases over HTTP and inspects their catalog.
//
// See constdb -help for a list of all commands.
package main

func main() {
	Execute()
}
