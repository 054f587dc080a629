package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func main() {
	// Subcommands
	createCmd := flag.NewFlagSet("create", flag.ExitOnError)
	endCmd := flag.NewFlagSet("end", flag.ExitOnError)
	sessionsCmd := flag.NewFlagSet("sessions", flag.ExitOnError)
	notifyCmd := flag.NewFlagSet("notify", flag.ExitOnError)
	catalogCmd := flag.NewFlagSet("catalog", flag.ExitOnError)
	configsCmd := flag.NewFlagSet("configs", flag.ExitOnError)

	// Global settings
	server := os.Getenv("ORCHESTRATOR_URL")
	if server == "" {
		server = "http://localhost:8082"
	}
	user := os.Getenv("ORCHESTRATOR_USER")
	password := os.Getenv("ORCHESTRATOR_PASSWORD")

	// Create flags
	createTemplate := createCmd.String("template", "", "Training template name (required)")
	createTrainees := createCmd.Int("trainees", 1, "Number of trainees")

	// End flags
	endID := endCmd.Int("id", 0, "Session ID (required)")

	// Sessions flags
	sessionsState := sessionsCmd.String("state", "", "Filter by state (optional)")

	// Notify flags
	notifyID := notifyCmd.Int("id", 0, "Session ID (required)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	client := &client{base: server, user: user, password: password,
		http: &http.Client{Timeout: 10 * time.Minute}}

	switch os.Args[1] {
	case "create":
		createCmd.Parse(os.Args[2:])
		if *createTemplate == "" {
			fmt.Println("Error: -template is required")
			createCmd.PrintDefaults()
			os.Exit(1)
		}
		body := map[string]interface{}{
			"template": *createTemplate,
			"trainees": *createTrainees,
		}
		client.do("POST", "/api/trainings", body)

	case "end":
		endCmd.Parse(os.Args[2:])
		if *endID == 0 {
			fmt.Println("Error: -id is required")
			endCmd.PrintDefaults()
			os.Exit(1)
		}
		client.do("DELETE", fmt.Sprintf("/api/trainings/%d", *endID), nil)

	case "sessions":
		sessionsCmd.Parse(os.Args[2:])
		path := "/api/trainings"
		if *sessionsState != "" {
			path += "?state=" + *sessionsState
		}
		client.do("GET", path, nil)

	case "notify":
		notifyCmd.Parse(os.Args[2:])
		if *notifyID == 0 {
			fmt.Println("Error: -id is required")
			notifyCmd.PrintDefaults()
			os.Exit(1)
		}
		client.do("GET", fmt.Sprintf("/api/trainings/%d/notification", *notifyID), nil)

	case "catalog":
		catalogCmd.Parse(os.Args[2:])
		client.do("GET", "/api/catalog", nil)

	case "configs":
		configsCmd.Parse(os.Args[2:])
		client.do("GET", "/api/configurations", nil)

	default:
		printUsage()
		os.Exit(1)
	}
}

type client struct {
	base     string
	user     string
	password string
	http     *http.Client
}

// do sends the request, pretty-prints the JSON reply, and exits
// non-zero unless the server answered 2xx.
func (c *client) do(method, path string, body interface{}) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, data, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(string(data))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: trainctl <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  create    Create a training session from a catalog template")
	fmt.Println("  end       End a training session")
	fmt.Println("  sessions  List sessions, optionally filtered by state")
	fmt.Println("  notify    Show the access endpoints of an active session")
	fmt.Println("  catalog   List available training templates")
	fmt.Println("  configs   List saved training configurations")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  ORCHESTRATOR_URL       Server URL (default http://localhost:8082)")
	fmt.Println("  ORCHESTRATOR_USER      Trainer id for authentication")
	fmt.Println("  ORCHESTRATOR_PASSWORD  Trainer password")
}
