package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/agora/internal/authz"
	"github.com/starford/agora/internal/events"
)

var (
	alice    = authz.Principal{UserID: "alice", Role: authz.RoleMember}
	bob      = authz.Principal{UserID: "bob", Role: authz.RoleMember}
	reviewer = authz.Principal{UserID: "rita", Role: authz.RoleReviewer}
)

// settle gives the broker loop time to deliver queued events.
func settle() { time.Sleep(50 * time.Millisecond) }

func drain(sub *Subscription) []string {
	var out []string
	for {
		select {
		case msg, ok := <-sub.C:
			if !ok {
				return out
			}
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

// kinds returns the event names in msgs, feed.updated included.
func kinds(msgs []string) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		name, _, _ := strings.Cut(strings.TrimPrefix(m, "event: "), "\n")
		out = append(out, name)
	}
	return out
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	assert.Equal(t, 0, b.Clients())
	sub := b.Subscribe(authz.Anonymous)
	assert.Equal(t, 1, b.Clients())
	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.Clients())

	_, ok := <-sub.C
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestNotify_Framing(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	sub := b.Subscribe(authz.Anonymous)
	defer b.Unsubscribe(sub)

	b.Notify(events.Event{Kind: events.ArtifactPublished, ID: "a1", OwnerID: "alice"})
	settle()

	msgs := drain(sub)
	require.Len(t, msgs, 2)
	assert.Equal(t, "event: artifact.published\ndata: {\"id\":\"a1\"}\n\n", msgs[0])
	assert.Equal(t, "event: feed.updated\ndata: {}\n\n", msgs[1])
}

func TestNotify_FiltersByViewer(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	anon := b.Subscribe(authz.Anonymous)
	owner := b.Subscribe(alice)
	other := b.Subscribe(bob)
	rev := b.Subscribe(reviewer)

	b.Notify(events.Event{Kind: events.ArtifactCreated, ID: "draft-1", OwnerID: "alice"})
	b.Notify(events.Event{Kind: events.ArtifactReviewRequested, ID: "draft-1", OwnerID: "alice"})
	b.Notify(events.Event{Kind: events.ArtifactPublished, ID: "pub-1", OwnerID: "alice"})
	settle()

	assert.Equal(t, []string{"artifact.published", FeedUpdated}, kinds(drain(anon)))
	assert.Equal(t, []string{"artifact.published", FeedUpdated}, kinds(drain(other)))
	assert.Equal(t, []string{"artifact.created", FeedUpdated, "artifact.review_requested", "artifact.published"}, kinds(drain(owner)))
	assert.Equal(t, []string{"artifact.review_requested", FeedUpdated, "artifact.published"}, kinds(drain(rev)))
}

func TestNotify_FeedThrottledPerSubscriber(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	sub := b.Subscribe(alice)
	defer b.Unsubscribe(sub)

	var cb events.Callback = b.Notify
	cb.Emit(events.Event{Kind: events.ArtifactCreated, ID: "a1", OwnerID: "alice"})
	cb.Emit(events.Event{Kind: events.ArtifactPublished, ID: "a2", OwnerID: "alice"})
	settle()

	assert.Equal(t, []string{"artifact.created", FeedUpdated, "artifact.published"}, kinds(drain(sub)))
}

func TestNotify_FeedAfterInterval(t *testing.T) {
	b := NewBroker(50 * time.Millisecond)
	defer b.Close()
	sub := b.Subscribe(authz.Anonymous)
	defer b.Unsubscribe(sub)

	b.Notify(events.Event{Kind: events.CommunityFollowed, ID: "c1"})
	time.Sleep(100 * time.Millisecond)
	b.Notify(events.Event{Kind: events.CommunityUnfollowed, ID: "c1"})
	settle()

	feed := 0
	for _, k := range kinds(drain(sub)) {
		if k == FeedUpdated {
			feed++
		}
	}
	assert.Equal(t, 2, feed)
}

func TestNotify_HiddenEventsDoNotConsumeFeed(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	anon := b.Subscribe(authz.Anonymous)
	defer b.Unsubscribe(anon)

	b.Notify(events.Event{Kind: events.ArtifactCreated, ID: "draft-1", OwnerID: "alice"})
	b.Notify(events.Event{Kind: events.CommunityCreated, ID: "c1"})
	settle()

	assert.Equal(t, []string{"community.created", FeedUpdated}, kinds(drain(anon)))
}

func TestNotify_DropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	sub := b.Subscribe(alice)
	defer b.Unsubscribe(sub)

	for i := 0; i < bufSize+10; i++ {
		b.Notify(events.Event{Kind: events.ArtifactUpdated, ID: "a1", OwnerID: "alice"})
	}
	settle()
	assert.Len(t, drain(sub), bufSize)
}

func TestServeHTTP_UsesRequestPrincipal(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	stream := func(ctx context.Context, p authz.Principal) (*httptest.ResponseRecorder, <-chan struct{}) {
		req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
		req = req.WithContext(authz.NewContext(ctx, p))
		w := httptest.NewRecorder()
		done := make(chan struct{})
		go func() {
			b.ServeHTTP(w, req)
			close(done)
		}()
		return w, done
	}

	ctx, cancel := context.WithCancel(context.Background())
	anonW, anonDone := stream(ctx, authz.Anonymous)
	ownerW, ownerDone := stream(ctx, alice)
	settle()
	require.Equal(t, 2, b.Clients())

	b.Notify(events.Event{Kind: events.ArtifactCreated, ID: "draft-1", OwnerID: "alice"})
	b.Notify(events.Event{Kind: events.ArtifactRated, ID: "pub-9", OwnerID: "alice"})
	settle()
	cancel()
	<-anonDone
	<-ownerDone

	assert.Equal(t, "text/event-stream", anonW.Header().Get("Content-Type"))
	assert.NotContains(t, anonW.Body.String(), "draft-1")
	assert.Contains(t, anonW.Body.String(), "event: artifact.rated")
	assert.Contains(t, ownerW.Body.String(), "draft-1")

	settle()
	assert.Equal(t, 0, b.Clients(), "clients should be removed after disconnect")
}

func TestClose(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	sub := b.Subscribe(alice)
	require.Equal(t, 1, b.Clients())

	b.Close()

	select {
	case _, ok := <-sub.C:
		assert.False(t, ok, "subscriber channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	assert.Equal(t, 0, b.Clients())

	// Calls after Close return immediately.
	b.Close()
	b.Notify(events.Event{Kind: events.ArtifactUpdated, ID: "a1"})
	late := b.Subscribe(alice)
	_, ok := <-late.C
	assert.False(t, ok)
	b.Unsubscribe(late)
}
