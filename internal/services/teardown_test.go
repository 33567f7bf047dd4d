package services

import (
	"bytes"
	"context"
	"log"
	"os"
	"strings"
	"testing"
	"time"
)

func TestTeardownDeletesProfileAndReservation(t *testing.T) {
	docs := newFakeStore()
	blobs := newFakeBlobStore()
	docs.addUser("u1", "Alice")

	svc := NewTeardownService(docs, blobs, 100)
	if err := svc.TeardownUser(context.Background(), "u1"); err != nil {
		t.Fatalf("TeardownUser: %v", err)
	}

	if _, ok := docs.users["u1"]; ok {
		t.Error("users/u1 still exists")
	}
	if _, ok := docs.usernames["alice"]; ok {
		t.Error("usernames/alice reservation still exists (case-folded key)")
	}
}

func TestTeardownCascadesOwnedGroups(t *testing.T) {
	docs := newFakeStore()
	blobs := newFakeBlobStore()
	docs.addUser("u1", "alice")
	docs.addGroup("g1", "u1", []string{"u1", "u2", "u3"}, 250)
	blobs.groupAvatars["u1/g1"] = true

	svc := NewTeardownService(docs, blobs, 100)
	if err := svc.TeardownUser(context.Background(), "u1"); err != nil {
		t.Fatalf("TeardownUser: %v", err)
	}

	if _, ok := docs.groups["g1"]; ok {
		t.Error("groups/g1 still exists")
	}
	if msgs := docs.messages["g1"]; len(msgs) != 0 {
		t.Errorf("%d messages left under g1, want 0", len(msgs))
	}
	if blobs.groupAvatars["u1/g1"] {
		t.Error("group avatar blob still exists")
	}
	if len(docs.purgeBatchSizes) != 1 || docs.purgeBatchSizes[0] != 100 {
		t.Errorf("purge batch sizes = %v, want [100]", docs.purgeBatchSizes)
	}
}

func TestTeardownPrunesMemberOnlyGroups(t *testing.T) {
	docs := newFakeStore()
	blobs := newFakeBlobStore()
	docs.addUser("u1", "alice")
	docs.addGroup("h1", "u9", []string{"u9", "u1", "u2"}, 5)

	svc := NewTeardownService(docs, blobs, 100)
	if err := svc.TeardownUser(context.Background(), "u1"); err != nil {
		t.Fatalf("TeardownUser: %v", err)
	}

	g, ok := docs.groups["h1"]
	if !ok {
		t.Fatal("groups/h1 was deleted but u1 is not its owner")
	}
	if g.HasMember("u1") {
		t.Error("u1 still in memberUserIds")
	}
	for _, m := range []string{"u9", "u2"} {
		if !g.HasMember(m) {
			t.Errorf("member %s was removed", m)
		}
	}
	if msgs := docs.messages["h1"]; len(msgs) != 5 {
		t.Errorf("h1 messages = %d, want 5 untouched", len(msgs))
	}
}

func TestTeardownIdempotent(t *testing.T) {
	docs := newFakeStore()
	blobs := newFakeBlobStore()
	docs.addUser("u1", "alice")
	blobs.userAvatars["u1"] = true
	docs.addGroup("g1", "u1", []string{"u1", "u2"}, 10)
	docs.addGroup("h1", "u9", []string{"u9", "u1"}, 3)

	svc := NewTeardownService(docs, blobs, 100)
	if err := svc.TeardownUser(context.Background(), "u1"); err != nil {
		t.Fatalf("first TeardownUser: %v", err)
	}

	opsAfterFirst := docs.committedOps
	if err := svc.TeardownUser(context.Background(), "u1"); err != nil {
		t.Fatalf("second TeardownUser: %v", err)
	}
	if docs.committedOps != opsAfterFirst {
		t.Errorf("second run committed %d additional mutations, want 0", docs.committedOps-opsAfterFirst)
	}
}

func TestTeardownSwallowsMissingBlobs(t *testing.T) {
	docs := newFakeStore()
	blobs := newFakeBlobStore() // no avatars exist
	docs.addUser("u1", "alice")
	docs.addGroup("g1", "u1", []string{"u1"}, 0)

	svc := NewTeardownService(docs, blobs, 100)
	if err := svc.TeardownUser(context.Background(), "u1"); err != nil {
		t.Fatalf("TeardownUser failed on absent blobs: %v", err)
	}
	if len(blobs.userDeletes) != 1 || len(blobs.groupDeletes) != 1 {
		t.Errorf("blob deletes user=%v group=%v, want one attempt each", blobs.userDeletes, blobs.groupDeletes)
	}
}

func TestTeardownBlobFailureIsNonFatal(t *testing.T) {
	docs := newFakeStore()
	blobs := newFakeBlobStore()
	blobs.failAll = true
	docs.addUser("u1", "alice")
	docs.addGroup("g1", "u1", []string{"u1"}, 2)

	svc := NewTeardownService(docs, blobs, 100)
	if err := svc.TeardownUser(context.Background(), "u1"); err != nil {
		t.Fatalf("TeardownUser aborted on blob failure: %v", err)
	}
	if _, ok := docs.users["u1"]; ok {
		t.Error("profile not deleted despite blob failure being best-effort")
	}
	if _, ok := docs.groups["g1"]; ok {
		t.Error("owned group not deleted despite blob failure being best-effort")
	}
}

func TestTeardownAbortsOnStoreError(t *testing.T) {
	docs := newFakeStore()
	blobs := newFakeBlobStore()
	docs.addUser("u1", "alice")
	docs.addGroup("g1", "u1", []string{"u1"}, 2)
	docs.failOwnedQuery = true

	svc := NewTeardownService(docs, blobs, 100)
	if err := svc.TeardownUser(context.Background(), "u1"); err == nil {
		t.Fatal("expected error from failing owned-groups query")
	}
	// Nothing committed: the final batch never ran.
	if _, ok := docs.users["u1"]; !ok {
		t.Error("profile deleted despite aborted teardown")
	}
	if docs.committedOps != 0 {
		t.Errorf("committed %d mutations despite abort, want 0", docs.committedOps)
	}
}

func TestTeardownMissingProfileStillCleansGroups(t *testing.T) {
	// A retried delivery may find the profile already gone but owned groups
	// still present (crash between purge and commit on the first attempt).
	docs := newFakeStore()
	blobs := newFakeBlobStore()
	docs.addGroup("g1", "u1", []string{"u1", "u2"}, 7)

	svc := NewTeardownService(docs, blobs, 100)
	if err := svc.TeardownUser(context.Background(), "u1"); err != nil {
		t.Fatalf("TeardownUser: %v", err)
	}
	if _, ok := docs.groups["g1"]; ok {
		t.Error("groups/g1 still exists")
	}
}

func TestTeardownCountsPrunedMemberships(t *testing.T) {
	// An owned group whose member list does not contain the owner must not
	// skew the completion summary: memberGroups counts actual prunes.
	docs := newFakeStore()
	blobs := newFakeBlobStore()
	docs.addUser("u1", "alice")
	docs.addGroup("g1", "u1", []string{"u2"}, 0)
	docs.addGroup("h1", "u9", []string{"u9", "u1"}, 0)

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	svc := NewTeardownService(docs, blobs, 100)
	if err := svc.TeardownUser(context.Background(), "u1"); err != nil {
		t.Fatalf("TeardownUser: %v", err)
	}

	if !strings.Contains(buf.String(), "ownedGroups=1 memberGroups=1") {
		t.Errorf("completion log = %q, want ownedGroups=1 memberGroups=1", buf.String())
	}
}

func TestSweepDeletesExpiredGroups(t *testing.T) {
	docs := newFakeStore()
	blobs := newFakeBlobStore()
	now := time.Now().UTC()

	docs.addGroup("expired", "u1", []string{"u1"}, 30)
	docs.groups["expired"].SelfDestructAt = now.Add(-time.Hour)
	blobs.groupAvatars["u1/expired"] = true

	docs.addGroup("active", "u2", []string{"u2"}, 4)
	docs.groups["active"].SelfDestructAt = now.Add(time.Hour)

	svc := NewSweepService(docs, blobs, 10)
	deleted, err := svc.SweepExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if _, ok := docs.groups["expired"]; ok {
		t.Error("expired group still exists")
	}
	if blobs.groupAvatars["u1/expired"] {
		t.Error("expired group avatar still exists")
	}
	if _, ok := docs.groups["active"]; !ok {
		t.Error("active group was deleted")
	}
	if len(docs.messages["active"]) != 4 {
		t.Error("active group messages were purged")
	}
}
