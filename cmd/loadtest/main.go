// Package main drives realtime load against a running server: every account
// holds a notification socket open and messages its friends on a timer.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"socialnet/internal/notifications"
	"socialnet/internal/seed"

	"github.com/gorilla/websocket"
)

// Metrics tracks the test results
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	MessagesSent         int64
	Notifications        int64
	PresenceEvents       int64
	OtherEvents          int64
	Errors               int64
}

var metrics Metrics

var httpClient = &http.Client{Timeout: 5 * time.Second}

func main() {
	host := flag.String("host", "localhost:8080", "API server host")
	accounts := flag.String("accounts", "", "Comma-separated account emails (seeded users work)")
	password := flag.String("password", seed.DefaultPassword, "Password shared by the accounts")
	interval := flag.Duration("interval", 5*time.Second, "Delay between messages per client")
	duration := flag.Duration("duration", 30*time.Second, "Test duration")
	flag.Parse()

	emails := splitAccounts(*accounts)
	if len(emails) == 0 {
		log.Fatal("❌ -accounts is required")
	}

	log.Printf("🚀 Starting realtime load test")
	log.Printf("Target: %s", *host)
	log.Printf("Clients: %d", len(emails))
	log.Printf("Duration: %v", *duration)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stopChan := make(chan struct{})

	for i, email := range emails {
		wg.Add(1)
		go runClient(*host, email, *password, *interval, i, stopChan, &wg)
		time.Sleep(50 * time.Millisecond) // Stagger logins under the rate limiter
	}

	select {
	case <-time.After(*duration):
		log.Println("⏱️  Test duration reached")
	case <-interrupt:
		log.Println("🛑 Interrupted by user")
	}

	close(stopChan)
	log.Println("Waiting for clients to disconnect...")
	wg.Wait()

	printMetrics()
}

func splitAccounts(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func login(host, email, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})

	resp, err := httpClient.Post(fmt.Sprintf("http://%s/api/auth/login", host), "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Token, nil
}

// call issues an authenticated request and decodes the JSON reply into dst when set.
func call(method, rawURL, token string, payload, dst interface{}) error {
	var reader *bytes.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, rawURL, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d", method, rawURL, resp.StatusCode)
	}
	if dst != nil {
		return json.NewDecoder(resp.Body).Decode(dst)
	}
	return nil
}

func friendIDs(host, token string) ([]uint, error) {
	var friends []struct {
		ID uint `json:"id"`
	}
	if err := call(http.MethodGet, fmt.Sprintf("http://%s/api/friends", host), token, nil, &friends); err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(friends))
	for _, f := range friends {
		ids = append(ids, f.ID)
	}
	return ids, nil
}

func getTicket(host, token string) (string, error) {
	var result struct {
		Ticket string `json:"ticket"`
	}
	if err := call(http.MethodPost, fmt.Sprintf("http://%s/api/ws/ticket", host), token, nil, &result); err != nil {
		return "", err
	}
	return result.Ticket, nil
}

func fail(stage string, id int, err error) {
	atomic.AddInt64(&metrics.Errors, 1)
	log.Printf("client %d: %s: %v", id, stage, err)
}

func runClient(host, email, password string, interval time.Duration, id int, stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	token, err := login(host, email, password)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		fail("login", id, err)
		return
	}
	friends, err := friendIDs(host, token)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		fail("friends", id, err)
		return
	}
	ticket, err := getTicket(host, token)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		fail("ticket", id, err)
		return
	}

	u := url.URL{Scheme: "ws", Host: host, Path: "/api/ws", RawQuery: "ticket=" + ticket}
	c, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		fail("dial", id, err)
		return
	}
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	defer func() { _ = c.Close() }()

	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)

	go readEvents(c)

	if len(friends) == 0 {
		// Nothing to send; stay connected for presence traffic.
		<-stopChan
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopChan:
			_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			to := friends[rand.IntN(len(friends))]
			err := call(http.MethodPost, fmt.Sprintf("http://%s/api/messages", host), token, map[string]interface{}{
				"receiver_id": to,
				"content":     fmt.Sprintf("Load test message from client %d", id),
			}, nil)
			if err != nil {
				fail("send", id, err)
				continue
			}
			atomic.AddInt64(&metrics.MessagesSent, 1)
		}
	}
}

func readEvents(c *websocket.Conn) {
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		var ev struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(data, &ev) != nil {
			atomic.AddInt64(&metrics.Errors, 1)
			continue
		}
		switch ev.Type {
		case notifications.EventNotification:
			atomic.AddInt64(&metrics.Notifications, 1)
		case notifications.EventFriendPresenceChanged, notifications.EventFriendsOnlineSnapshot:
			atomic.AddInt64(&metrics.PresenceEvents, 1)
		default:
			atomic.AddInt64(&metrics.OtherEvents, 1)
		}
	}
}

func printMetrics() {
	log.Println("\n📊 Test Results")
	log.Println("===============")
	log.Printf("Connections Attempted: %d", atomic.LoadInt64(&metrics.ConnectionsAttempted))
	log.Printf("Connections Successful: %d", atomic.LoadInt64(&metrics.ConnectionsSuccess))
	log.Printf("Connections Failed: %d", atomic.LoadInt64(&metrics.ConnectionsFailed))
	log.Printf("Messages Sent: %d", atomic.LoadInt64(&metrics.MessagesSent))
	log.Printf("Notifications Received: %d", atomic.LoadInt64(&metrics.Notifications))
	log.Printf("Presence Events: %d", atomic.LoadInt64(&metrics.PresenceEvents))
	log.Printf("Other Events: %d", atomic.LoadInt64(&metrics.OtherEvents))
	log.Printf("Total Errors: %d", atomic.LoadInt64(&metrics.Errors))
}
