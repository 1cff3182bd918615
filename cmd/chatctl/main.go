package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/matheus3301/chatcore/internal/api"
	"github.com/matheus3301/chatcore/internal/chatlist"
	"github.com/matheus3301/chatcore/internal/client"
	"github.com/matheus3301/chatcore/internal/profile"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fail(err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	c, err := client.New(profile.SocketPath(profileName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot connect to daemon for profile %q: %v\n", profileName, err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	if args[0] == "watch" {
		cmdWatch(c, *jsonFlag)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var resp map[string]any
	switch args[0] {
	case "status":
		if err := c.Healthy(ctx); err != nil {
			fail(err)
		}
		fmt.Printf("Profile: %s\nDaemon:  serving\n", profileName)
		return
	case "home":
		need(args, 2, "home <resume|pause>")
		resp, err = c.SetHomeState(ctx, state(args[1]))
	case "chats":
		resp, err = c.ListChats(ctx, len(args) > 1 && args[1] == "--fresh")
		if err == nil && !*jsonFlag {
			printChats(resp)
			return
		}
	case "open":
		need(args, 2, "open <chat-id> [peer-id]")
		resp, err = c.OpenChat(ctx, args[1], arg(args, 2))
	case "chat":
		need(args, 3, "chat <chat-id> <resume|pause>")
		resp, err = c.SetChatState(ctx, args[1], state(args[2]))
	case "close":
		need(args, 2, "close <chat-id>")
		resp, err = c.CloseChat(ctx, args[1])
	case "timeline":
		need(args, 2, "timeline <chat-id>")
		resp, err = c.GetTimeline(ctx, args[1])
		if err == nil && !*jsonFlag {
			printTimeline(resp)
			return
		}
	case "read":
		need(args, 2, "read <chat-id> [peer-id]")
		resp, err = c.MarkRead(ctx, args[1], arg(args, 2))
	case "send":
		need(args, 3, "send <chat-id> <text>")
		resp, err = c.SendText(ctx, args[1], args[2])
	case "send-image":
		need(args, 3, "send-image <chat-id> <file>")
		data, rerr := os.ReadFile(args[2])
		if rerr != nil {
			fail(rerr)
		}
		resp, err = c.SendImage(ctx, args[1], data)
	case "add":
		need(args, 2, "add <email>")
		resp, err = c.AddChat(ctx, args[1])
		if err == nil && !*jsonFlag {
			if resp["created"] == true {
				fmt.Printf("Chat %s created with %s\n", resp["chat_id"], resp["peer_name"])
			} else {
				fmt.Printf("Chat %s with %s already exists\n", resp["chat_id"], resp["peer_name"])
			}
			return
		}
	case "profile":
		if len(args) > 1 && args[1] == "set" {
			need(args, 4, "profile set <name> <email>")
			resp, err = c.SaveProfile(ctx, args[2], args[3])
		} else {
			resp, err = c.GetProfile(ctx)
		}
		if err == nil && !*jsonFlag {
			fmt.Printf("Name:  %s\nEmail: %s\nID:    %s\n", resp["name"], resp["email"], resp["user_id"])
			return
		}
	case "register":
		need(args, 2, "register <subscription-json>")
		resp, err = c.RegisterDevice(ctx, args[1])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fail(err)
	}
	outputJSON(resp)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: chatctl [--profile <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                        Check the daemon is serving")
	fmt.Fprintln(os.Stderr, "  home resume|pause             Show or hide the chat list")
	fmt.Fprintln(os.Stderr, "  chats [--fresh]               Print the chat list")
	fmt.Fprintln(os.Stderr, "  watch                         Stream chat list renders")
	fmt.Fprintln(os.Stderr, "  open <chat-id> [peer-id]      Open a conversation")
	fmt.Fprintln(os.Stderr, "  chat <chat-id> resume|pause   Show or hide an open conversation")
	fmt.Fprintln(os.Stderr, "  close <chat-id>               Close a conversation")
	fmt.Fprintln(os.Stderr, "  timeline <chat-id>            Print a conversation")
	fmt.Fprintln(os.Stderr, "  read <chat-id> [peer-id]      Mark the peer's messages read")
	fmt.Fprintln(os.Stderr, "  send <chat-id> <text>         Send a text message")
	fmt.Fprintln(os.Stderr, "  send-image <chat-id> <file>   Send an image")
	fmt.Fprintln(os.Stderr, "  add <email>                   Start a chat by email")
	fmt.Fprintln(os.Stderr, "  profile                       Show your profile")
	fmt.Fprintln(os.Stderr, "  profile set <name> <email>    Register or update your profile")
	fmt.Fprintln(os.Stderr, "  register <subscription-json>  Register this device for push")
}

func state(s string) string {
	switch s {
	case "resume", api.StateResumed:
		return api.StateResumed
	case "pause", api.StatePaused:
		return api.StatePaused
	}
	return s
}

func arg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return ""
}

func need(args []string, n int, usage string) {
	if len(args) < n {
		fmt.Fprintf(os.Stderr, "usage: chatctl %s\n", usage)
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func cmdWatch(c *client.Client, jsonOut bool) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err := c.WatchChatList(ctx, func(snap map[string]any) error {
		if jsonOut {
			outputJSON(snap)
		} else {
			printChats(snap)
			fmt.Println()
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		fail(err)
	}
}

func printChats(snap map[string]any) {
	rows, _ := snap["rows"].([]any)
	if len(rows) == 0 {
		fmt.Println("No chats.")
		return
	}
	now := time.Now()
	for _, r := range rows {
		row, _ := r.(map[string]any)
		dot := " "
		if row["online"] == true {
			dot = "●"
		}
		when := ""
		if ms, _ := row["last_message_at"].(float64); ms > 0 {
			when = chatlist.TimeAgo(time.UnixMilli(int64(ms)), now)
		}
		unread := ""
		if n, _ := row["unread"].(float64); n > 0 {
			unread = fmt.Sprintf("(%d)", int(n))
		}
		fmt.Printf("%s %-20s %-8s %-5s %s  [%s]\n", dot, row["peer_name"], when, unread, row["preview"], row["chat_id"])
	}
}

func printTimeline(tl map[string]any) {
	items, _ := tl["items"].([]any)
	for _, it := range items {
		item, _ := it.(map[string]any)
		if item["kind"] == "separator" {
			fmt.Printf("── %s ──\n", item["label"])
			continue
		}
		ms, _ := item["timestamp"].(float64)
		body := item["text"]
		if item["type"] == "image" {
			body = item["image_url"]
		}
		fmt.Printf("%s %s: %v\n", time.UnixMilli(int64(ms)).Format("15:04"), item["sender_name"], body)
	}
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
