package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"openvault/internal/auth"
	"openvault/internal/models"
	"openvault/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

func TestRegisterSuccess(t *testing.T) {
	var created models.User
	var opened []models.Account
	var actions []string
	txCalls := 0
	handler := newTestHandler(testDeps{
		accounts: stubAccounts{openFn: func(_ context.Context, userID string, accountType models.AccountType) (models.Account, error) {
			account := models.Account{ID: "acc-1", IBAN: "FR7610278000010000000000142", UserID: userID, Type: accountType, Active: true, Version: 1}
			opened = append(opened, account)
			return account, nil
		}},
		txRunner: fakeTxRunner{withTxFn: func(_ context.Context, fn func(*sqlx.Tx) error) error {
			txCalls++
			return fn(nil)
		}},
		users: stubUserStore{createFn: func(_ context.Context, _ store.Execer, user models.User) error {
			created = user
			return nil
		}},
		audit: stubAuditStore{logFn: func(_ context.Context, _, action, _, _, _ string) error {
			actions = append(actions, action)
			return nil
		}},
	})

	rr := serve(t, handler, http.MethodPost, "/auth/register",
		`{"first_name":"Ada","last_name":"Lovelace","email":" Ada@Example.com ","phone_number":"06 12 34 56 78","password":"pass1234"}`, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var payload struct {
		Token   string         `json:"token"`
		Account models.Account `json:"account"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	claims, err := auth.ParseToken(testSecret, payload.Token)
	if err != nil {
		t.Fatalf("token does not parse: %v", err)
	}
	if claims.UserID != created.ID {
		t.Fatalf("token for %q, created %q", claims.UserID, created.ID)
	}
	if created.Email != "ada@example.com" {
		t.Fatalf("expected normalized email, got %q", created.Email)
	}
	if created.PhoneNumber == nil || *created.PhoneNumber != "0612345678" {
		t.Fatalf("expected normalized phone number, got %v", created.PhoneNumber)
	}
	if !auth.CheckPassword(created.PasswordHash, "pass1234") {
		t.Fatalf("stored hash does not match password")
	}
	if txCalls != 1 {
		t.Fatalf("expected one transaction, got %d", txCalls)
	}
	if len(actions) != 1 || actions[0] != "user.register" {
		t.Fatalf("unexpected audit actions: %v", actions)
	}
	if len(opened) != 1 || opened[0].UserID != created.ID || opened[0].Type != models.AccountChecking {
		t.Fatalf("expected one CHECKING account for the new user, got %#v", opened)
	}
	if payload.Account.IBAN != opened[0].IBAN {
		t.Fatalf("expected the opened account in the response, got %#v", payload.Account)
	}
}

func TestRegisterKeepsUserWhenDefaultAccountFails(t *testing.T) {
	handler := newTestHandler(testDeps{
		accounts: stubAccounts{openFn: func(context.Context, string, models.AccountType) (models.Account, error) {
			return models.Account{}, models.ErrPersistenceFailure
		}},
	})
	rr := serve(t, handler, http.MethodPost, "/auth/register",
		`{"first_name":"Ada","last_name":"Lovelace","email":"ada@example.com","password":"pass1234"}`, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["token"] == "" || payload["token"] == nil {
		t.Fatalf("expected token, got %#v", payload)
	}
	if _, ok := payload["account"]; ok {
		t.Fatalf("account must be absent when opening failed: %#v", payload)
	}
}

func TestRegisterValidation(t *testing.T) {
	handler := newTestHandler(testDeps{
		users: stubUserStore{createFn: func(context.Context, store.Execer, models.User) error {
			t.Errorf("create must not be called")
			return nil
		}},
	})
	cases := map[string]string{
		"bad email":      `{"first_name":"Ada","last_name":"Lovelace","email":"nope","password":"pass1234"}`,
		"short password": `{"first_name":"Ada","last_name":"Lovelace","email":"ada@example.com","password":"short"}`,
		"missing name":   `{"first_name":"","last_name":"Lovelace","email":"ada@example.com","password":"pass1234"}`,
		"bad phone":      `{"first_name":"Ada","last_name":"Lovelace","email":"ada@example.com","phone_number":"call me","password":"pass1234"}`,
		"not json":       `{`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rr := serve(t, handler, http.MethodPost, "/auth/register", body, "")
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	handler := newTestHandler(testDeps{
		users: stubUserStore{createFn: func(context.Context, store.Execer, models.User) error {
			return &pq.Error{Code: "23505", Constraint: "users_email_key"}
		}},
	})
	rr := serve(t, handler, http.MethodPost, "/auth/register",
		`{"first_name":"Ada","last_name":"Lovelace","email":"ada@example.com","password":"pass1234"}`, "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "email already registered") {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestRegisterDuplicatePhone(t *testing.T) {
	handler := newTestHandler(testDeps{
		users: stubUserStore{createFn: func(context.Context, store.Execer, models.User) error {
			return &pq.Error{Code: "23505", Constraint: "users_phone_number_key"}
		}},
	})
	rr := serve(t, handler, http.MethodPost, "/auth/register",
		`{"first_name":"Ada","last_name":"Lovelace","email":"ada@example.com","phone_number":"0612345678","password":"pass1234"}`, "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "phone number already registered") {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestLogin(t *testing.T) {
	hash, err := auth.HashPassword("pass1234")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	handler := newTestHandler(testDeps{
		users: stubUserStore{getByEmailFn: func(_ context.Context, email string) (models.User, error) {
			if email != "ada@example.com" {
				return models.User{}, models.ErrNotFound
			}
			return models.User{ID: "user-1", Email: email, PasswordHash: hash}, nil
		}},
	})

	rr := serve(t, handler, http.MethodPost, "/auth/login", `{"email":"ADA@example.com","password":"pass1234"}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = serve(t, handler, http.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"wrong-pass"}`, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", rr.Code)
	}

	rr = serve(t, handler, http.MethodPost, "/auth/login", `{"email":"bob@example.com","password":"pass1234"}`, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown user, got %d", rr.Code)
	}
}

func TestLoginStoreFailure(t *testing.T) {
	handler := newTestHandler(testDeps{
		users: stubUserStore{getByEmailFn: func(context.Context, string) (models.User, error) {
			return models.User{}, errors.New("connection reset")
		}},
	})
	rr := serve(t, handler, http.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"pass1234"}`, "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestMe(t *testing.T) {
	handler := newTestHandler(testDeps{
		users: stubUserStore{getByIDFn: func(_ context.Context, userID string) (models.User, error) {
			phone := "0612345678"
			return models.User{ID: userID, FirstName: "Ada", Email: "ada@example.com", PhoneNumber: &phone, PasswordHash: "hidden", CreatedAt: time.Now()}, nil
		}},
	})

	if rr := serve(t, handler, http.MethodGet, "/auth/me", "", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	rr := serve(t, handler, http.MethodGet, "/auth/me", "", "user-1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["id"] != "user-1" || payload["phone_number"] != "0612345678" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
	if _, leaked := payload["password_hash"]; leaked {
		t.Fatalf("password hash must not be serialized")
	}
}

func TestActivity(t *testing.T) {
	handler := newTestHandler(testDeps{
		audit: stubAuditStore{listFn: func(_ context.Context, actorID string, limit, offset int) ([]store.AuditEntry, error) {
			if actorID != "user-1" || limit != 10 || offset != 20 {
				t.Fatalf("unexpected args: %s %d %d", actorID, limit, offset)
			}
			return []store.AuditEntry{{ID: "a-1", ActorUserID: stringPtr("user-1"), Action: "user.login"}}, nil
		}},
	})
	rr := serve(t, handler, http.MethodGet, "/auth/activity?page=2&size=10", "", "user-1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload []map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(payload) != 1 || payload[0]["action"] != "user.login" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}
