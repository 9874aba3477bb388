// chatmcp CLI - Command line client for chat-mcp channels
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/thiagovictorino/chat-mcp/clients/go/chatmcp"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	baseURL := os.Getenv("CHATMCP_URL")
	client := chatmcp.NewClient(baseURL)
	cmd := os.Args[1]

	switch cmd {
	case "health":
		resp, err := client.Health()
		exitOnError(err)
		printJSON(resp)

	case "channels":
		resp, err := client.ListChannels(50, 0)
		exitOnError(err)
		for _, ch := range resp.Channels {
			fmt.Printf("  %s  %s (%d/%d agents)\n", ch.ID, ch.Name, ch.AgentCount, ch.MaxAgents)
		}

	case "create":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: chatmcp create <name> [description]")
			os.Exit(1)
		}
		description := ""
		if len(os.Args) > 3 {
			description = os.Args[3]
		}
		resp, err := client.CreateChannel(os.Args[2], description, 0)
		exitOnError(err)
		fmt.Printf("Created channel: %s\n", resp.ID)

	case "join":
		if len(os.Args) < 5 {
			fmt.Fprintln(os.Stderr, "Usage: chatmcp join <channel_id> <username> <role>")
			os.Exit(1)
		}
		resp, err := client.Join(os.Args[2], os.Args[3], os.Args[4])
		exitOnError(err)
		fmt.Printf("Joined as: %s (%s)\n", resp.Username, resp.AgentID)

	case "send":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: chatmcp send <channel_id> <message>")
			os.Exit(1)
		}
		id := mustIdentity(client, os.Args[2])
		resp, err := client.Send(os.Args[2], id.AgentID, os.Args[3])
		exitOnError(err)
		fmt.Printf("Sent message #%d: %s\n", resp.SequenceNumber, resp.ID)

	case "new":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: chatmcp new <channel_id>")
			os.Exit(1)
		}
		id := mustIdentity(client, os.Args[2])
		resp, err := client.GetNew(os.Args[2], id.AgentID, 50)
		exitOnError(err)
		printMessages(resp.Messages)

	case "history":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: chatmcp history <channel_id>")
			os.Exit(1)
		}
		id := mustIdentity(client, os.Args[2])
		resp, err := client.History(os.Args[2], id.AgentID, 50, 0)
		exitOnError(err)
		printMessages(resp.Messages)

	case "mentions":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: chatmcp mentions <channel_id>")
			os.Exit(1)
		}
		id := mustIdentity(client, os.Args[2])
		resp, err := client.CheckMentions(os.Args[2], id.AgentID, 20)
		exitOnError(err)
		printMessages(resp.Messages)

	case "agents":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: chatmcp agents <channel_id>")
			os.Exit(1)
		}
		agents, err := client.ListAgents(os.Args[2])
		exitOnError(err)
		for _, a := range agents {
			fmt.Printf("  @%s  %s\n", a.Username, a.RoleDescription)
		}

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func mustIdentity(client *chatmcp.Client, channelID string) *chatmcp.Identity {
	id, err := client.LoadIdentity(channelID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Not a member of this channel; run: chatmcp join", channelID, "<username> <role>")
		os.Exit(1)
	}
	return id
}

func printMessages(messages []chatmcp.MessageView) {
	for _, msg := range messages {
		fmt.Printf("[#%d %s] @%s: %s\n", msg.SequenceNumber, msg.Timestamp, msg.Sender.Username, msg.Content)
	}
}

func usage() {
	fmt.Println(`chatmcp CLI - Agent channel messaging

Usage: chatmcp <command> [options]

Commands:
  channels                       List active channels
  create <name> [description]    Create a channel
  join <channel> <user> <role>   Join a channel
  send <channel> <message>       Send a message
  new <channel>                  Fetch unread messages (marks them read)
  history <channel>              Fetch recent history
  mentions <channel>             Fetch messages mentioning you
  agents <channel>               List channel members
  health                         Check server health

Environment:
  CHATMCP_URL      Server URL (default: http://localhost:8080)
  CHATMCP_CONFIG   Config directory (default: ~/.chatmcp)`)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
