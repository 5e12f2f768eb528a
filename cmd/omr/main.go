// Command omr reads bubble answer sheets: it discovers form layouts,
// extracts answer keys and student answers, grades them, and serves the
// pipeline over HTTP.
package main

func main() {
	Execute()
}
