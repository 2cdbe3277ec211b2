// Command agentchat runs an interactive conversation with a team of AI agents.
package main

func main() {
	Execute()
}
