package service

import (
	"testing"
	"time"

	"github.com/aurachat/aurachat/pkg/auth"
	"github.com/aurachat/aurachat/pkg/event"
	"github.com/aurachat/aurachat/pkg/quota"
)

const testSecret = "test-secret"

type sessionFixture struct {
	users *memUsers
	convs *memConvs
	instr *memInstructions
	svc   *SessionService
}

func newSessionFixture() *sessionFixture {
	f := &sessionFixture{
		users: newMemUsers(),
		convs: newMemConvs(),
		instr: newMemInstructions(),
	}
	f.svc = NewSessionService(f.users, f.convs, f.instr,
		quota.NewTracker(10, nil), NewStreamer(0), testSecret, testLogger())
	return f
}

func mintCredential(t *testing.T, email string, ttl time.Duration) string {
	t.Helper()
	tok, err := auth.Mint(auth.Profile{Subject: "ext-" + email, Email: email, Name: "Tester"}, testSecret, ttl)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	return tok
}

func TestConnect_GuestWithoutCredential(t *testing.T) {
	f := newSessionFixture()
	sess := f.svc.NewSession()
	sink := &sinkRecorder{}

	f.svc.Connect(sess, "", sink)

	events := sink.all()
	if len(events) != 1 {
		t.Fatalf("events = %v, want a single init", sink.names())
	}
	init, ok := events[0].(event.InitEvent)
	if !ok {
		t.Fatalf("event = %#v, want init", events[0])
	}
	if init.User != nil || init.Conversation != nil {
		t.Fatalf("guest init must carry no identity: %+v", init)
	}
	if init.Instructions == nil || len(init.Instructions) != 0 {
		t.Fatalf("guest init instructions = %#v, want empty non-nil list", init.Instructions)
	}
	if sess.User() != nil {
		t.Fatalf("guest session has an identity")
	}
}

func TestConnect_InvalidCredentialDowngradesToGuest(t *testing.T) {
	f := newSessionFixture()
	sess := f.svc.NewSession()
	sink := &sinkRecorder{}

	f.svc.Connect(sess, "garbage", sink)

	names := sink.names()
	if len(names) != 2 || names[0] != "init" || names[1] != "auth-result" {
		t.Fatalf("events = %v, want [init auth-result]", names)
	}
	res := sink.all()[1].(event.AuthResultEvent)
	if res.Success || res.Message != "Invalid credential" {
		t.Fatalf("auth-result = %+v", res)
	}
	if sess.User() != nil {
		t.Fatalf("invalid credential must leave the session a guest")
	}
}

func TestConnect_ExpiredCredential(t *testing.T) {
	f := newSessionFixture()
	sess := f.svc.NewSession()
	sink := &sinkRecorder{}

	f.svc.Connect(sess, mintCredential(t, "old@example.com", -time.Minute), sink)

	res := sink.all()[1].(event.AuthResultEvent)
	if res.Success || res.Message != "Credential expired" {
		t.Fatalf("auth-result = %+v", res)
	}
}

func TestConnect_ValidCredentialCreatesAccountAndConversation(t *testing.T) {
	f := newSessionFixture()
	sess := f.svc.NewSession()
	sink := &sinkRecorder{}

	f.svc.Connect(sess, mintCredential(t, "ann@example.com", time.Hour), sink)

	names := sink.names()
	if len(names) != 2 || names[0] != "init" || names[1] != "auth-result" {
		t.Fatalf("events = %v, want [init auth-result]", names)
	}

	init := sink.all()[0].(event.InitEvent)
	if init.User == nil || init.User.Email != "ann@example.com" {
		t.Fatalf("init user = %+v", init.User)
	}
	if init.Conversation == nil || len(init.Conversation.Messages) != 0 {
		t.Fatalf("init conversation = %+v, want fresh empty conversation", init.Conversation)
	}

	res := sink.all()[1].(event.AuthResultEvent)
	if !res.Success {
		t.Fatalf("auth-result = %+v", res)
	}

	if _, err := f.users.FindByEmail("ann@example.com"); err != nil {
		t.Fatalf("account was not created: %v", err)
	}
	if sess.User() == nil || sess.User().Email != "ann@example.com" {
		t.Fatalf("session identity = %+v", sess.User())
	}
}

func TestConnect_ReturningUserGetsHistory(t *testing.T) {
	f := newSessionFixture()

	// First connection creates the account and conversation.
	first := f.svc.NewSession()
	f.svc.Connect(first, mintCredential(t, "ann@example.com", time.Hour), &sinkRecorder{})

	conv, err := f.convs.FindLatest(first.User().ID)
	if err != nil {
		t.Fatalf("FindLatest() error = %v", err)
	}
	if _, err := f.convs.AppendMessage(conv.ID, "user", "earlier question"); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	if _, err := f.instr.Create(first.User().ID, "be brief"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Second connection for the same account restores everything.
	second := f.svc.NewSession()
	sink := &sinkRecorder{}
	f.svc.Connect(second, mintCredential(t, "ann@example.com", time.Hour), sink)

	init := sink.all()[0].(event.InitEvent)
	if init.Conversation.ID != conv.ID {
		t.Fatalf("init conversation = %s, want existing %s", init.Conversation.ID, conv.ID)
	}
	if len(init.Conversation.Messages) != 1 || init.Conversation.Messages[0].Content != "earlier question" {
		t.Fatalf("init messages = %+v", init.Conversation.Messages)
	}
	if len(init.Instructions) != 1 || init.Instructions[0].Text != "be brief" {
		t.Fatalf("init instructions = %+v", init.Instructions)
	}
	if second.User().ID != first.User().ID {
		t.Fatalf("returning user resolved to a different account")
	}
}

func TestAuthenticate_UpgradesGuestMidSession(t *testing.T) {
	f := newSessionFixture()
	sess := f.svc.NewSession()
	f.svc.Connect(sess, "", &sinkRecorder{})

	sink := &sinkRecorder{}
	f.svc.Authenticate(sess, mintCredential(t, "late@example.com", time.Hour), sink)

	names := sink.names()
	if len(names) != 2 || names[0] != "init" || names[1] != "auth-result" {
		t.Fatalf("events = %v, want [init auth-result]", names)
	}
	if sess.User() == nil || sess.User().Email != "late@example.com" {
		t.Fatalf("session identity = %+v", sess.User())
	}
}

func TestAuthenticate_EmptyCredential(t *testing.T) {
	f := newSessionFixture()
	sess := f.svc.NewSession()
	sink := &sinkRecorder{}

	f.svc.Authenticate(sess, "", sink)

	events := sink.all()
	if len(events) != 1 {
		t.Fatalf("events = %v, want a single auth-result", sink.names())
	}
	res, ok := events[0].(event.AuthResultEvent)
	if !ok || res.Success || res.Message != "No credential provided" {
		t.Fatalf("event = %#v", events[0])
	}
}

func TestAuthenticate_FailureKeepsExistingIdentity(t *testing.T) {
	f := newSessionFixture()
	sess := f.svc.NewSession()
	f.svc.Connect(sess, mintCredential(t, "ann@example.com", time.Hour), &sinkRecorder{})

	sink := &sinkRecorder{}
	f.svc.Authenticate(sess, "garbage", sink)

	res := sink.all()[0].(event.AuthResultEvent)
	if res.Success {
		t.Fatalf("auth-result = %+v", res)
	}
	if sess.User() == nil || sess.User().Email != "ann@example.com" {
		t.Fatalf("failed re-auth must not drop the existing identity")
	}
}

func TestDisconnect_ReleasesQuota(t *testing.T) {
	tracker := quota.NewTracker(1, nil)
	f := &sessionFixture{users: newMemUsers(), convs: newMemConvs(), instr: newMemInstructions()}
	f.svc = NewSessionService(f.users, f.convs, f.instr, tracker, NewStreamer(0), testSecret, testLogger())

	sess := f.svc.NewSession()
	tracker.CheckAndConsume(sess.ID)
	f.svc.Disconnect(sess)

	if allowed, _ := tracker.CheckAndConsume(sess.ID); !allowed {
		t.Fatalf("quota record should be released on disconnect")
	}
}
