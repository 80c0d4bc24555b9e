package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classportal/internal/account"
	"classportal/internal/api"
	"classportal/internal/auth"
	"classportal/internal/chat"
	"classportal/internal/config"
	"classportal/internal/listview"
	"classportal/internal/live"
	"classportal/internal/portal"
	"classportal/internal/queue"
	"classportal/internal/storage"
	"classportal/internal/store/storetest"
)

func init() { gin.SetMode(gin.TestMode) }

type fixture struct {
	cfg      config.App
	accounts *account.Service
	out      *bytes.Buffer
}

// setup runs a real api over an in-memory database and returns a CLI pointed at it.
func setup(t *testing.T) *fixture {
	t.Helper()
	var handler http.Handler
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg := config.App{
		PublicBaseURL:      srv.URL,
		PortalURL:          srv.URL,
		JWTIssuer:          "classportal-test",
		JWTSigningKey:      "cli-signing-key",
		AccessTTL:          time.Hour,
		RefreshTTL:         time.Hour,
		UploadURLTTL:       time.Hour,
		MaxUploadBytes:     1 << 16,
		DefaultTimezone:    "UTC",
		PageSize:           5,
		ClassmatesPageSize: 10,
	}
	db := storetest.NewDB(t)
	broker := live.NewMemory()
	jobs := queue.NewInMemory(32)
	files := storage.NewService(storage.NewRepository(db.Client), storage.NewMemory(srv.URL+storage.FilesPrefix), storage.Options{
		SigningKey:    cfg.JWTSigningKey,
		Issuer:        cfg.JWTIssuer,
		PublicBaseURL: cfg.PublicBaseURL,
		URLTTL:        cfg.UploadURLTTL,
		MaxBytes:      cfg.MaxUploadBytes,
	})
	users := account.NewRepository(db.Client)
	chats := chat.NewRepository(db.Client)
	f := &fixture{
		cfg:      cfg,
		accounts: account.NewService(users, files, chats, broker, jobs),
		out:      &bytes.Buffer{},
	}
	handler = api.NewRouter(api.Deps{
		Config:   cfg,
		DB:       db,
		Portal:   portal.NewService(portal.NewRepository(db.Client), files, broker, jobs),
		Accounts: f.accounts,
		Chats:    chat.NewService(chats, users, files, broker),
		Storage:  files,
		Broker:   broker,
	})
	return f
}

// cli returns a command line acting as token; input answers confirmation prompts.
func (f *fixture) cli(token, input string) *commandLine {
	f.out.Reset()
	cfg := f.cfg
	cfg.PortalToken = token
	return &commandLine{
		cfg: cfg,
		out: f.out,
		in:  strings.NewReader(input),
		openAccounts: func(context.Context, config.App) (*account.Service, func(), error) {
			return f.accounts, func() {}, nil
		},
	}
}

func (f *fixture) user(t *testing.T, subject, username string, admin bool) (string, string) {
	t.Helper()
	ctx := context.Background()
	u, err := f.accounts.Sync(ctx, account.SyncInput{Subject: subject, Name: username, Username: username})
	require.NoError(t, err)
	if admin {
		require.NoError(t, f.accounts.Promote(ctx, username, true))
	}
	tokens, err := auth.Issue(subject, "user", f.cfg.JWTIssuer, f.cfg.JWTSigningKey, time.Hour, time.Hour)
	require.NoError(t, err)
	return u.ID, tokens.AccessToken
}

type cliTest struct {
	name       string
	args       []string // without program name
	input      string
	wantErr    error
	wantErrStr string
	wantOut    string
}

func runTests(t *testing.T, f *fixture, token string, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli := f.cli(token, tt.input)
			err := cli.run(context.Background(), append([]string{"portalctl"}, tt.args...))
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				require.NoError(t, err, f.out.String())
			}
			if tt.wantOut != "" {
				assert.Contains(t, f.out.String(), tt.wantOut)
			}
		})
	}
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func Test_commandLine_usage(t *testing.T) {
	f := setup(t)
	runTests(t, f, "", []cliTest{
		{name: "no command", args: nil, wantErr: errHelp, wantOut: "Usage:"},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "list without resource", args: []string{"list"}, wantErr: errHelp},
		{name: "delete flag instead of resource", args: []string{"delete", "-id", "x"}, wantErr: errHelp},
		{name: "token without subject", args: []string{"token"}, wantErr: errHelp},
		{name: "promote without username", args: []string{"promote"}, wantErr: errHelp},
		{name: "help flag", args: []string{"add-course", "-h"}, wantErr: errHelp},
		{name: "chat-send needs one target", args: []string{"chat-send", "-text", "hi"}, wantErr: errHelp},
		{name: "no token", args: []string{"list", "notes"}, wantErrStr: "Unauthorized"},
	})
}

func Test_commandLine_tokenAndPromote(t *testing.T) {
	f := setup(t)
	f.user(t, "sub-1", "CSC001", false)

	cli := f.cli("", "")
	require.NoError(t, cli.run(context.Background(), []string{"portalctl", "token", "-subject", "sub-1"}))
	claims, err := auth.Parse(strings.TrimSpace(f.out.String()), f.cfg.JWTSigningKey, f.cfg.JWTIssuer)
	require.NoError(t, err)
	assert.Equal(t, "sub-1", claims.Subject)

	runTests(t, f, "", []cliTest{
		{name: "unknown user", args: []string{"promote", "-username", "ghost"}, wantErrStr: "no user named ghost"},
		{name: "grant", args: []string{"promote", "-username", "CSC001"}, wantOut: "CSC001 admin=true"},
	})
	viewer, err := f.accounts.ResolveViewer(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.True(t, viewer.Admin)

	runTests(t, f, "", []cliTest{
		{name: "revoke", args: []string{"promote", "-username", "CSC001", "-revoke"}, wantOut: "CSC001 admin=false"},
	})
}

func Test_commandLine_content(t *testing.T) {
	f := setup(t)
	_, admin := f.user(t, "sub-admin", "CSC100", true)
	_, student := f.user(t, "sub-student", "CSC200", false)
	png := writeFile(t, "page.png", []byte("\x89PNG\r\n\x1a\nbody"))

	runTests(t, f, admin, []cliTest{
		{name: "course", args: []string{"add-course", "-course", "CSC201", "-unit", "3"}, wantOut: `"course": "CSC201"`},
		{name: "course invalid", args: []string{"add-course", "-course", "CSC202"}, wantErrStr: "unit: unit must be greater than 0"},
		{
			name:    "assignment",
			args:    []string{"add-assignment", "-title", "Homework", "-course", "CSC201", "-question", "Explain recursion briefly", "-question", "Define a closure in Go"},
			wantOut: "Define a closure in Go",
		},
		{
			name:       "assignment blank question",
			args:       []string{"add-assignment", "-title", "Homework", "-course", "CSC201", "-question", " ", "-question", "Define a closure in Go"},
			wantErrStr: "Please complete the current question before adding another",
		},
		{name: "note without images", args: []string{"upload-note", "-title", "Week 1", "-course", "CSC201"}, wantErrStr: portal.NoImagesMessage},
		{name: "note", args: []string{"upload-note", "-title", "Week 1", "-course", "CSC201", png}, wantOut: "Week 1"},
		{
			name:    "shop",
			args:    []string{"add-shop", "-course", "CSC201", "-name", "Lab manual", "-price", "1500", "-link", "https://pay.example/m", "-deadline", "31/12/2026"},
			wantOut: "Lab manual",
		},
		{name: "announce unknown kind", args: []string{"announce", "-kind", "Gossip", "-description", "x"}, wantErrStr: `unknown announcement kind "Gossip"`},
		{name: "announce", args: []string{"announce", "-description", "Moved to LT2", "-venue", "LT2", "-course", "CSC201"}, wantOut: `"venue": "LT2"`},
		{name: "list courses", args: []string{"list", "courses"}, wantOut: `"totalUnits": 3`},
		{name: "list filter", args: []string{"list", "assignments", "-q", "closure"}, wantOut: `"total": 1`},
		{name: "list bad date", args: []string{"list", "notes", "-date", "31/12/2026"}, wantErrStr: "date must be YYYY-MM-DD"},
	})

	runTests(t, f, student, []cliTest{
		{name: "student cannot create", args: []string{"add-course", "-course", "CSC301", "-unit", "2"}, wantErrStr: "permission denied"},
		{name: "student cannot delete", args: []string{"delete", "notes", "-id", "x", "-yes"}, wantErr: listview.ErrDeleteNotAllowed},
	})
}

func Test_commandLine_delete(t *testing.T) {
	f := setup(t)
	_, admin := f.user(t, "sub-admin", "CSC100", true)

	cli := f.cli(admin, "")
	require.NoError(t, cli.run(context.Background(), []string{"portalctl", "add-course", "-course", "CSC201", "-unit", "3"}))
	var course portal.Course
	require.NoError(t, json.Unmarshal(f.out.Bytes(), &course))

	runTests(t, f, admin, []cliTest{
		{name: "declined", args: []string{"delete", "courses", "-id", course.ID}, input: "n\n", wantOut: "cancelled"},
		{name: "confirmed", args: []string{"delete", "courses", "-id", course.ID}, input: "y\n", wantOut: "deleted"},
		{name: "already gone", args: []string{"delete", "courses", "-id", course.ID, "-yes"}, wantOut: "deleted"},
		{name: "list empty", args: []string{"list", "courses"}, wantOut: `"empty": true`},
	})
}

func Test_commandLine_chatAndWatch(t *testing.T) {
	f := setup(t)
	_, ada := f.user(t, "sub-ada", "CSC001", false)
	bolaID, _ := f.user(t, "sub-bola", "CSC002", false)

	runTests(t, f, ada, []cliTest{
		{name: "first message opens chat", args: []string{"chat-send", "-to", bolaID, "-text", "hello"}, wantOut: `"content": "hello"`},
		{name: "media", args: []string{"chat-send", "-to", bolaID, "-file", writeFile(t, "a.png", []byte("\x89PNG\r\n\x1a\n")), "-type", "image"}, wantOut: `"type": "image"`},
		{name: "watch classmates", args: []string{"watch", "classmates", "-n", "1"}, wantOut: `"chatId"`},
	})
}
