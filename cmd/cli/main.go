package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

const usage = `usage: sitewatch-cli <command> [args]

commands:
  sites                      list configured sites
  results                    list stored results
  result <name>              show one result
  refresh [-quick] [-force-empty] <name>
                             refresh one site
  detect                     run a batch over all enabled sites
  flags                      list sites that need a new login
  dismiss <name>             clear a site's login flag
  prompts                    list pending login confirmations
  confirm <name>             confirm a login and retry the site
  decline <name>             decline a pending confirmation
  timers                     list auto-refresh timers

env: API_BASE (default http://localhost:8080), API_KEY`

type client struct {
	base string
	key  string
	http *http.Client
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}
	c := &client{base: api, key: os.Getenv("API_KEY"), http: &http.Client{Timeout: 10 * time.Minute}}

	if err := c.dispatch(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (c *client) dispatch(cmd string, args []string) error {
	one := func() (string, error) {
		if len(args) != 1 {
			return "", fmt.Errorf("%s needs exactly one site name", cmd)
		}
		return url.PathEscape(args[0]), nil
	}

	switch cmd {
	case "sites":
		return c.call(http.MethodGet, "/api/sites", nil)
	case "results":
		return c.call(http.MethodGet, "/api/results", nil)
	case "result":
		name, err := one()
		if err != nil {
			return err
		}
		return c.call(http.MethodGet, "/api/results/"+name, nil)
	case "refresh":
		fs := flag.NewFlagSet("refresh", flag.ContinueOnError)
		quick := fs.Bool("quick", false, "reuse cached extended data")
		force := fs.Bool("force-empty", false, "accept an empty answer as success")
		if err := fs.Parse(args); err != nil {
			return err
		}
		args = fs.Args()
		name, err := one()
		if err != nil {
			return err
		}
		q := url.Values{}
		if *quick {
			q.Set("quick", "1")
		}
		if *force {
			q.Set("force_empty", "1")
		}
		path := "/api/sites/" + name + "/refresh"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}
		return c.call(http.MethodPost, path, nil)
	case "detect":
		return c.call(http.MethodPost, "/api/detect", nil)
	case "flags":
		return c.call(http.MethodGet, "/api/auth-errors", nil)
	case "dismiss":
		name, err := one()
		if err != nil {
			return err
		}
		return c.call(http.MethodDelete, "/api/auth-errors/"+name, nil)
	case "prompts":
		return c.call(http.MethodGet, "/api/prompts", nil)
	case "confirm", "decline":
		name, err := one()
		if err != nil {
			return err
		}
		return c.call(http.MethodPost, "/api/prompts/"+name, map[string]bool{"confirm": cmd == "confirm"})
	case "timers":
		return c.call(http.MethodGet, "/api/timers", nil)
	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}
}

func (c *client) call(method, path string, body any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.key != "" {
		req.Header.Set("X-API-Key", c.key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contacting API: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("API returned %s: %s", resp.Status, bytes.TrimSpace(raw))
	}
	if len(raw) == 0 {
		fmt.Println("ok")
		return nil
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, raw, "", "  ") != nil {
		_, err = os.Stdout.Write(raw)
		return err
	}
	fmt.Println(pretty.String())
	return nil
}
