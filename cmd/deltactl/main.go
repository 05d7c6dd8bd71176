// Command deltactl edits binary files in place.
package main

func main() {
	execute()
}
