// client/main.go
//
// 手动联调客户端: 连接服务器, 从标准输入读指令并打印收到的事件.
//
//	ready | unready
//	character <name>
//	start
//	move <x> <y>
//	attack <type>
//	hit <targetId> <damage>
//	leave
//	quit
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
)

type event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "server websocket URL")
	userID := flag.String("user", "user_demo", "user id to identify as")
	username := flag.String("name", "demo", "display name")
	roomID := flag.String("room", "", "room id to join after identifying")
	flag.Parse()

	conn, _, err := websocket.DefaultDialer.Dial(*addr, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	go func() {
		for {
			var evt event
			if err := conn.ReadJSON(&evt); err != nil {
				fmt.Fprintf(os.Stderr, "connection closed: %v\n", err)
				os.Exit(0)
			}
			fmt.Printf("<< %s %s\n", evt.Name, string(evt.Data))
		}
	}()

	send := func(name string, payload interface{}) {
		data, err := json.Marshal(payload)
		if err != nil {
			fmt.Fprintf(os.Stderr, "marshal: %v\n", err)
			return
		}
		if err := conn.WriteJSON(&event{Name: name, Data: data}); err != nil {
			fmt.Fprintf(os.Stderr, "send: %v\n", err)
		}
	}

	send("identify", map[string]string{"userId": *userID, "username": *username})
	if *roomID != "" {
		send("room:join", map[string]string{"roomId": *roomID})
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "ready":
			send("player:ready", map[string]bool{"ready": true})
		case "unready":
			send("player:ready", map[string]bool{"ready": false})
		case "character":
			if len(fields) < 2 {
				fmt.Println("usage: character <name>")
				continue
			}
			send("player:character", map[string]string{"character": fields[1]})
		case "start":
			send("game:start", struct{}{})
		case "move":
			if len(fields) < 3 {
				fmt.Println("usage: move <x> <y>")
				continue
			}
			x, _ := strconv.ParseFloat(fields[1], 64)
			y, _ := strconv.ParseFloat(fields[2], 64)
			send("player:move", map[string]interface{}{
				"position": map[string]float64{"x": x, "y": y},
				"state":    "running",
			})
		case "attack":
			attackType := "melee"
			if len(fields) > 1 {
				attackType = fields[1]
			}
			send("player:attack", map[string]string{"attackType": attackType})
		case "hit":
			if len(fields) < 3 {
				fmt.Println("usage: hit <targetId> <damage>")
				continue
			}
			damage, _ := strconv.Atoi(fields[2])
			send("player:hit", map[string]interface{}{"targetId": fields[1], "damage": damage})
		case "leave":
			send("room:leave", struct{}{})
		case "quit":
			return
		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
}
