// smoke-gate drives an end-to-end pass through a running API: a student
// card through the gate, a rejected lost card, a visitor lifecycle and a
// queue round-trip. It needs the same CAMPUSPASS_AUTH_SECRET as the
// server to mint its tokens.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"

	"campuspass.org/internal/auth"
)

type client struct {
	base string
	http *http.Client
}

func (c *client) do(method, path, token string, body any, out any) (int, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return 0, err
		}
	}
	req, err := http.NewRequest(method, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func main() {
	base := os.Getenv("CAMPUSPASS_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	c := &client{base: base, http: &http.Client{Timeout: 10 * time.Second}}

	officer, err := auth.GenerateToken("smoke-officer", auth.RoleSafetyOfficer, time.Hour)
	if err != nil {
		log.Fatalf("token: %v", err)
	}
	student, err := auth.GenerateToken("smoke-student", auth.RoleStudent, time.Hour)
	if err != nil {
		log.Fatalf("token: %v", err)
	}
	cashier, err := auth.GenerateToken("smoke-cashier", auth.RoleCashier, time.Hour)
	if err != nil {
		log.Fatalf("token: %v", err)
	}

	run := rand.New(rand.NewSource(time.Now().UnixNano())).Intn(1_000_000)
	cardNo := fmt.Sprintf("SMK-%06d", run)
	visitorNo := fmt.Sprintf("SMV-%06d", run)

	// Student card through the gate and back out.
	code, err := c.do(http.MethodPost, "/v1/cards", officer, map[string]any{
		"number": cardNo, "owner_id": "smoke-student", "kind": "student",
	}, nil)
	if err != nil || code != http.StatusCreated {
		log.Fatalf("register card: code=%d err=%v", code, err)
	}
	code, err = c.do(http.MethodPost, "/v1/taps", officer, map[string]any{
		"card_number": cardNo, "access_point": "main-gate", "direction": "in",
	}, nil)
	if err != nil || code != http.StatusCreated {
		log.Fatalf("in tap: code=%d err=%v", code, err)
	}

	var pres struct {
		Items []struct {
			Card struct {
				Number string `json:"number"`
			} `json:"card"`
		} `json:"items"`
	}
	code, err = c.do(http.MethodGet, "/v1/presence", officer, nil, &pres)
	if err != nil || code != http.StatusOK {
		log.Fatalf("presence: code=%d err=%v", code, err)
	}
	found := false
	for _, p := range pres.Items {
		if p.Card.Number == cardNo {
			found = true
		}
	}
	if !found {
		log.Fatalf("card %s not present after in tap", cardNo)
	}
	code, err = c.do(http.MethodPost, "/v1/taps", officer, map[string]any{
		"card_number": cardNo, "access_point": "main-gate", "direction": "out",
	}, nil)
	if err != nil || code != http.StatusCreated {
		log.Fatalf("out tap: code=%d err=%v", code, err)
	}

	// Lost card must bounce off the gate.
	code, err = c.do(http.MethodPost, "/v1/cards/"+cardNo+"/status", officer, map[string]any{"status": "lost"}, nil)
	if err != nil || code != http.StatusOK {
		log.Fatalf("mark lost: code=%d err=%v", code, err)
	}
	code, err = c.do(http.MethodPost, "/v1/taps", officer, map[string]any{
		"card_number": cardNo, "access_point": "main-gate", "direction": "in",
	}, nil)
	if err != nil || code != http.StatusForbidden {
		log.Fatalf("lost card tap should be 403, got %d err=%v", code, err)
	}

	// Visitor: admit, walk in, walk out; the exit closes the session.
	var admitted struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
	}
	code, err = c.do(http.MethodPost, "/v1/visitors", officer, map[string]any{
		"card_number": visitorNo, "first_name": "Smoke", "last_name": "Visitor",
		"purpose": "smoke run", "visiting": "registrar",
	}, &admitted)
	if err != nil || code != http.StatusCreated {
		log.Fatalf("admit visitor: code=%d err=%v", code, err)
	}
	for _, dir := range []string{"in", "out"} {
		code, err = c.do(http.MethodPost, "/v1/taps", officer, map[string]any{
			"card_number": visitorNo, "access_point": "main-gate", "direction": dir,
		}, nil)
		if err != nil || code != http.StatusCreated {
			log.Fatalf("visitor %s tap: code=%d err=%v", dir, code, err)
		}
	}
	var sess struct {
		Status string `json:"status"`
	}
	code, err = c.do(http.MethodGet, "/v1/visitors/"+admitted.Session.ID, officer, nil, &sess)
	if err != nil || code != http.StatusOK {
		log.Fatalf("get session: code=%d err=%v", code, err)
	}
	if sess.Status != "completed" {
		log.Fatalf("visitor session not completed after exit, status=%s", sess.Status)
	}

	// Queue: two tickets, strict serving order, busy window detected.
	var t1, t2, called struct {
		ID     string `json:"id"`
		Number int    `json:"number"`
	}
	if code, err = c.do(http.MethodPost, "/v1/queue/tickets", student, map[string]any{"purpose": "smoke"}, &t1); err != nil || code != http.StatusCreated {
		log.Fatalf("issue 1: code=%d err=%v", code, err)
	}
	if code, err = c.do(http.MethodPost, "/v1/queue/tickets", student, map[string]any{"purpose": "smoke"}, &t2); err != nil || code != http.StatusCreated {
		log.Fatalf("issue 2: code=%d err=%v", code, err)
	}
	if t2.Number != t1.Number+1 {
		log.Fatalf("ticket numbers not consecutive: %d then %d", t1.Number, t2.Number)
	}
	if code, err = c.do(http.MethodPost, "/v1/queue/next", cashier, map[string]any{"window": 1}, &called); err != nil || code != http.StatusOK {
		log.Fatalf("call next: code=%d err=%v", code, err)
	}
	if called.ID != t1.ID {
		log.Fatalf("served out of order: wanted %s got %s", t1.ID, called.ID)
	}
	if code, err = c.do(http.MethodPost, "/v1/queue/next", cashier, map[string]any{"window": 1}, nil); err != nil || code != http.StatusConflict {
		log.Fatalf("busy window should be 409, got %d err=%v", code, err)
	}
	if code, err = c.do(http.MethodPost, "/v1/queue/tickets/"+called.ID+"/complete", cashier, nil, nil); err != nil || code != http.StatusOK {
		log.Fatalf("complete: code=%d err=%v", code, err)
	}
	if code, err = c.do(http.MethodPost, "/v1/queue/next", cashier, map[string]any{"window": 1}, &called); err != nil || code != http.StatusOK {
		log.Fatalf("call next 2: code=%d err=%v", code, err)
	}
	if called.ID != t2.ID {
		log.Fatalf("second serve out of order: wanted %s got %s", t2.ID, called.ID)
	}
	if code, err = c.do(http.MethodPost, "/v1/queue/tickets/"+called.ID+"/cancel", cashier, nil, nil); err != nil || code != http.StatusOK {
		log.Fatalf("cancel: code=%d err=%v", code, err)
	}

	fmt.Printf("✅ gate smoke test passed: card=%s visitor=%s tickets=%d,%d\n", cardNo, visitorNo, t1.Number, t2.Number)
}
