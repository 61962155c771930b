// A line-oriented client for poking at a matchpoint server: key exchange,
// lobby lifecycle commands, heartbeats and the UDP rendezvous report.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"matchpoint/internal/protocol"
)

func main() {
	addr := flag.String("a", "127.0.0.1:18001", "Server control address")
	name := flag.String("n", "", "Display name to set after connecting")
	flag.Parse()

	c, err := dial(*addr)
	if err != nil {
		log.Fatal(err)
	}
	defer c.close()

	go c.readLoop()
	if err := c.negotiate(); err != nil {
		log.Fatal("key exchange:", err)
	}
	go c.heartbeatLoop()

	if *name != "" {
		if !c.waitReady(3 * time.Second) {
			log.Fatal("key exchange did not complete")
		}
		if err := c.send(&protocol.ChangeName{DisplayName: *name}); err != nil {
			log.Fatal("set name:", err)
		}
	}

	fmt.Println("commands: name|create|join|leave|delete|start <lobby>, swap <lobby> <a> <b>, info, say <msg>, quit")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		var err error
		switch cmd {
		case "quit":
			return
		case "info":
			err = c.send(&protocol.ServerInfoRequest{})
		case "name":
			err = withArg(args, func(v string) error {
				return c.send(&protocol.ChangeName{DisplayName: v})
			})
		case "create":
			err = withArg(args, func(v string) error {
				return c.send(&protocol.CreateLobby{LobbyName: v})
			})
		case "join":
			err = withArg(args, func(v string) error {
				return c.send(&protocol.JoinLobby{LobbyName: v})
			})
		case "leave":
			err = withArg(args, func(v string) error {
				return c.send(&protocol.LeaveLobby{LobbyName: v})
			})
		case "delete":
			err = withArg(args, func(v string) error {
				return c.send(&protocol.DeleteLobby{LobbyName: v})
			})
		case "start":
			err = withArg(args, func(v string) error {
				return c.send(&protocol.StartLobby{LobbyName: v})
			})
		case "swap":
			if len(args) != 3 {
				err = fmt.Errorf("usage: swap <lobby> <seat> <seat>")
				break
			}
			var first, second int
			if first, err = strconv.Atoi(args[1]); err != nil {
				break
			}
			if second, err = strconv.Atoi(args[2]); err != nil {
				break
			}
			err = c.send(&protocol.SwapSeats{LobbyName: args[0], FirstSeat: first, SecondSeat: second})
		case "say":
			err = c.send(&protocol.Status{Level: protocol.LevelInfo, Message: strings.Join(args, " ")})
		default:
			err = fmt.Errorf("unknown command %q", cmd)
		}
		if err != nil {
			fmt.Println("error:", err)
		}
	}
}

func withArg(args []string, fn func(string) error) error {
	if len(args) != 1 {
		return fmt.Errorf("expected exactly one argument")
	}
	return fn(args[0])
}
