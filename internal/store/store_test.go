package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/agora/internal/apperr"
	"github.com/starford/agora/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "agora-store-test-*.db")
	require.NoError(t, err)
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func insertArtifact(t *testing.T, db *DB, id, owner string, status models.Status, created time.Time) *models.Artifact {
	t.Helper()
	a := &models.Artifact{
		ID:        id,
		Title:     "title " + id,
		Content:   "content",
		OwnerID:   owner,
		Status:    status,
		Version:   1,
		CreatedOn: created,
		UpdatedOn: created,
	}
	require.NoError(t, db.InsertArtifact(context.Background(), a))
	return a
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"artifacts", "reviews", "ratings", "communities", "follows"} {
		var count int
		err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count)
		require.NoError(t, err, "table %s missing", table)
	}
}

func TestGetArtifact_NotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.GetArtifact(context.Background(), "missing")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestInsertAndGetArtifact(t *testing.T) {
	db := testDB(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	insertArtifact(t, db, "a1", "alice", models.StatusDraft, now)

	got, err := db.GetArtifact(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.OwnerID)
	assert.Equal(t, models.StatusDraft, got.Status)
	assert.Equal(t, int64(1), got.Version)
	assert.True(t, got.CreatedOn.Equal(now))
}

func TestTransitionArtifact_CompareAndSet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	insertArtifact(t, db, "a1", "alice", models.StatusDraft, now)

	require.NoError(t, db.TransitionArtifact(ctx, "a1", models.StatusDraft, 1, models.StatusReviewRequested, now))

	// Same expectation again is stale now.
	err := db.TransitionArtifact(ctx, "a1", models.StatusDraft, 1, models.StatusReviewRequested, now)
	require.ErrorIs(t, err, apperr.ErrInvalidState)

	got, err := db.GetArtifact(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReviewRequested, got.Status)
	assert.Equal(t, int64(2), got.Version)
}

func TestUpdateArtifact_StaleVersion(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	a := insertArtifact(t, db, "a1", "alice", models.StatusDraft, time.Now().UTC())

	a.Title = "v2"
	require.NoError(t, db.UpdateArtifact(ctx, a, 1))
	assert.Equal(t, int64(2), a.Version)

	a.Title = "v3"
	err := db.UpdateArtifact(ctx, a, 1)
	require.ErrorIs(t, err, apperr.ErrInvalidState)

	got, _ := db.GetArtifact(ctx, "a1")
	assert.Equal(t, "v2", got.Title)
}

func TestListArtifacts_Visibility(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	base := time.Now().UTC()
	insertArtifact(t, db, "pub", "bob", models.StatusPublished, base)
	insertArtifact(t, db, "mine", "alice", models.StatusDraft, base.Add(time.Second))
	insertArtifact(t, db, "hidden", "bob", models.StatusDraft, base.Add(2*time.Second))

	anon, err := db.ListArtifacts(ctx, ArtifactFilter{Visible: true})
	require.NoError(t, err)
	require.Len(t, anon, 1)
	assert.Equal(t, "pub", anon[0].ID)

	alice, err := db.ListArtifacts(ctx, ArtifactFilter{Visible: true, ViewerID: "alice"})
	require.NoError(t, err)
	require.Len(t, alice, 2)
	assert.Equal(t, "mine", alice[0].ID, "newest first")
	assert.Equal(t, "pub", alice[1].ID)

	drafts, err := db.ListArtifacts(ctx, ArtifactFilter{Statuses: []models.Status{models.StatusDraft}})
	require.NoError(t, err)
	assert.Len(t, drafts, 2)

	bobs, err := db.ListArtifacts(ctx, ArtifactFilter{OwnerID: "bob", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, bobs, 1)
	assert.Equal(t, "pub", bobs[0].ID)
}

func TestPutReview_Replaces(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	insertArtifact(t, db, "a1", "alice", models.StatusReviewRequested, now)

	decided := now.Add(time.Minute)
	require.NoError(t, db.PutReview(ctx, models.Review{
		ArtifactID: "a1", Decision: models.DecisionRejected, ReviewerID: "rev",
		Comment: "needs work", RequestedOn: now, DecidedOn: &decided,
	}))
	require.NoError(t, db.PutReview(ctx, models.Review{
		ArtifactID: "a1", Decision: models.DecisionPending, RequestedOn: now.Add(time.Hour),
	}))

	reviews, err := db.Reviews(ctx, []string{"a1", "other"})
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	r := reviews["a1"]
	assert.Equal(t, models.DecisionPending, r.Decision)
	assert.Empty(t, r.ReviewerID)
	assert.Empty(t, r.Comment)
	assert.Nil(t, r.DecidedOn)
}

func TestUpsertRating_OverwritesAndAggregates(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	insertArtifact(t, db, "a1", "alice", models.StatusPublished, now)

	agg, err := db.AggregateRating(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 0, agg.Count)
	assert.Nil(t, agg.Mean)

	require.NoError(t, db.UpsertRating(ctx, models.Rating{ArtifactID: "a1", UserID: "bob", Score: 5, RatedOn: now}))
	require.NoError(t, db.UpsertRating(ctx, models.Rating{ArtifactID: "a1", UserID: "bob", Score: 2, RatedOn: now}))
	require.NoError(t, db.UpsertRating(ctx, models.Rating{ArtifactID: "a1", UserID: "carol", Score: 5, RatedOn: now}))

	ratings, err := db.Ratings(ctx, []string{"a1"})
	require.NoError(t, err)
	assert.Len(t, ratings["a1"], 2)

	agg, err = db.AggregateRating(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 2, agg.Count)
	require.NotNil(t, agg.Mean)
	assert.InDelta(t, 3.5, *agg.Mean, 1e-9)
}

func TestRatingScoreConstraint(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	insertArtifact(t, db, "a1", "alice", models.StatusPublished, time.Now().UTC())

	err := db.UpsertRating(ctx, models.Rating{ArtifactID: "a1", UserID: "bob", Score: 6, RatedOn: time.Now()})
	require.Error(t, err)
}

func TestCommunities(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	c := &models.Community{ID: "c1", Name: "Go", Description: "gophers", OwnerID: "admin", CreatedOn: now}
	require.NoError(t, db.InsertCommunity(ctx, c))

	dup := &models.Community{ID: "c2", Name: "Go", OwnerID: "admin", CreatedOn: now}
	require.ErrorIs(t, db.InsertCommunity(ctx, dup), apperr.ErrAlreadyExists)

	_, err := db.GetCommunity(ctx, "nope")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	all, err := db.ListCommunities(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "gophers", all[0].Description)
}

func TestFollowEdges(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, db.InsertCommunity(ctx, &models.Community{ID: "c1", Name: "Go", OwnerID: "admin", CreatedOn: now}))

	edge := models.Follower{CommunityID: "c1", UserID: "bob", FollowedOn: now}
	require.NoError(t, db.InsertFollow(ctx, edge))
	require.NoError(t, db.InsertFollow(ctx, edge))

	ok, err := db.IsFollowing(ctx, "c1", "bob")
	require.NoError(t, err)
	assert.True(t, ok)

	followers, err := db.Followers(ctx, []string{"c1"})
	require.NoError(t, err)
	assert.Len(t, followers["c1"], 1)

	require.NoError(t, db.DeleteFollow(ctx, "c1", "bob"))
	require.NoError(t, db.DeleteFollow(ctx, "c1", "bob"))
	ok, _ = db.IsFollowing(ctx, "c1", "bob")
	assert.False(t, ok)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithTx(ctx, func(tx *Tx) error {
		a := &models.Artifact{ID: "tx", Title: "t", OwnerID: "alice", Status: models.StatusDraft,
			Version: 1, CreatedOn: time.Now(), UpdatedOn: time.Now()}
		if err := tx.InsertArtifact(ctx, a); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = db.GetArtifact(ctx, "tx")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
