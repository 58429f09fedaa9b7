// Command hardeen builds procedural geometry graphs from Lisp scripts and
// evaluates them.
package main

func main() {
	Execute()
}
