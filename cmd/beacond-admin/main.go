// Command beacond-admin is an interactive debug shell against a running
// beacond daemon's local-only admin HTTP API: status, task listing/
// triggering, pending-approval resolution, and log tailing, without
// needing a fresh `beacond` invocation per command.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/beaconhq/beacond/internal/channels"
	"github.com/beaconhq/beacond/internal/config"
)

func main() {
	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "beacond-admin:", err)
		os.Exit(1)
	}
	baseURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Daemon.Port)

	rl, err := readline.New(fmt.Sprintf("%s> ", cfg.Agent.Name))
	if err != nil {
		fmt.Fprintln(os.Stderr, "beacond-admin:", err)
		os.Exit(1)
	}
	defer rl.Close()

	shell := &adminShell{baseURL: baseURL, http: &http.Client{Timeout: 10 * time.Second}, cfg: cfg}
	fmt.Println("connected to", baseURL, "- type 'help' for commands, 'exit' to quit")

	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF (Ctrl-D) or readline.ErrInterrupt (Ctrl-C)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}
		shell.dispatch(line)
	}
}

type adminShell struct {
	baseURL string
	http    *http.Client
	cfg     *config.Config
}

func (s *adminShell) dispatch(line string) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help":
		fmt.Println(`commands:
  status               show idle/session/channel/voice state
  status extended       include scheduler, tasks, and peer detail
  tasks                list registered tasks
  run <task>           trigger a task immediately
  approve <ch> <id>    approve a held pending sender
  deny <ch> <id>       deny a held pending sender
  logs                 print the daemon's recent log tail
  signal <name>        send a worker signal
  onboard whatsapp     pair a WhatsApp device (run with the daemon stopped)
  exit                 leave the shell`)
	case "status":
		path := "/status"
		if len(args) == 1 && args[0] == "extended" {
			path = "/status/extended"
		}
		s.getAndPrint(path)
	case "tasks":
		s.getAndPrint("/tasks")
	case "run":
		if len(args) != 1 {
			fmt.Println("usage: run <task>")
			return
		}
		s.postAndPrint("/tasks/"+args[0]+"/run", nil)
	case "approve", "deny":
		if len(args) != 2 {
			fmt.Printf("usage: %s <channel> <sender-id>\n", cmd)
			return
		}
		body := map[string]interface{}{
			"channel": args[0], "sender_id": args[1], "approve": cmd == "approve",
		}
		s.postAndPrint("/access/approve", body)
	case "logs":
		s.getRaw("/logs")
	case "signal":
		if len(args) != 1 {
			fmt.Println("usage: signal <name>")
			return
		}
		s.postAndPrint("/worker/signal", map[string]string{"signal": args[0]})
	case "onboard":
		if len(args) != 1 || args[0] != "whatsapp" {
			fmt.Println("usage: onboard whatsapp")
			return
		}
		s.onboardWhatsApp()
	default:
		fmt.Printf("unknown command %q, type 'help'\n", cmd)
	}
}

func (s *adminShell) onboardWhatsApp() {
	dbPath := filepath.Join(s.cfg.ResolvePath("state"), "whatsapp.db")
	fmt.Println("scan the QR code below with WhatsApp > Linked Devices:")
	if err := channels.PairWhatsApp(context.Background(), dbPath); err != nil {
		fmt.Println("error:", err)
	}
}

func (s *adminShell) getAndPrint(path string) {
	resp, err := s.http.Get(s.baseURL + path)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer resp.Body.Close()
	printJSON(resp.Body)
}

func (s *adminShell) postAndPrint(path string, body interface{}) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		reader = bytes.NewReader(b)
	}
	resp, err := s.http.Post(s.baseURL+path, "application/json", reader)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer resp.Body.Close()
	printJSON(resp.Body)
}

func (s *adminShell) getRaw(path string) {
	resp, err := s.http.Get(s.baseURL + path)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer resp.Body.Close()
	io.Copy(os.Stdout, resp.Body)
}

func printJSON(r io.Reader) {
	var v interface{}
	dec := json.NewDecoder(r)
	if err := dec.Decode(&v); err != nil {
		fmt.Println("error decoding response:", err)
		return
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(strconv.Quote(fmt.Sprint(v)))
		return
	}
	fmt.Println(string(out))
}
