// trebleshot shares files between devices over WebRTC data channels
package main

import "trebleshot/cmd"

func main() {
	cmd.Execute()
}
