package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"golang.org/x/sync/semaphore"
	"google.golang.org/api/option"

	"github.com/poof/backend/internal/config"
	"github.com/poof/backend/internal/services"
	"github.com/poof/backend/internal/store"
)

// Eventarc delivers CloudEvents; for Firebase Auth user-deletion events the
// body carries the deleted account. Minimal field we need: uid.
type authDeletedEvent struct {
	UID string `json:"uid"`
}

// cloudEventEnvelope handles Eventarc structured content mode where the
// payload is nested inside a "data" field.
type cloudEventEnvelope struct {
	Data authDeletedEvent `json:"data"`
}

type worker struct {
	teardown *services.TeardownService
	sweep    *services.SweepService
	alerts   *services.AlertMailer
	sem      *semaphore.Weighted
}

// alert emails the operators when configured; failures only log, the
// alert channel must never change the HTTP response to Eventarc.
func (w *worker) alert(ctx context.Context, send func(context.Context) error) {
	if !w.alerts.Configured() {
		return
	}
	if err := send(ctx); err != nil {
		log.Printf("[worker] alert mail failed: %v", err)
	}
}

func main() {
	cfg := config.Load()
	ctx := context.Background()

	var opts []option.ClientOption
	if cfg.FirebaseCredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.FirebaseCredentialsJSON)))
	} else if cfg.FirebaseCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.FirebaseCredentialsFile))
	}

	fsClient, err := firestore.NewClient(ctx, cfg.FirebaseProjectID, opts...)
	if err != nil {
		log.Fatalf("[worker] firestore init failed: %v", err)
	}
	defer fsClient.Close()

	docs, err := store.NewFirestoreStore(fsClient)
	if err != nil {
		log.Fatalf("[worker] store init failed: %v", err)
	}

	var blobs store.BlobStore
	if cfg.StorageBucket != "" {
		gcs, err := storage.NewClient(ctx, opts...)
		if err != nil {
			log.Fatalf("[worker] storage init failed: %v", err)
		}
		blobs, err = store.NewGCSBlobStore(gcs, cfg.StorageBucket)
		if err != nil {
			log.Fatalf("[worker] blob store init failed: %v", err)
		}
	} else {
		log.Printf("[worker] WARNING: FIREBASE_STORAGE_BUCKET not set, using local blob dir %s", cfg.BlobDir)
		blobs, err = store.NewLocalBlobStore(cfg.BlobDir)
		if err != nil {
			log.Fatalf("[worker] local blob store init failed: %v", err)
		}
	}

	maxConcurrent := cfg.TeardownMaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	w := &worker{
		teardown: services.NewTeardownService(docs, blobs, cfg.PurgeBatchSize),
		sweep:    services.NewSweepService(docs, blobs, cfg.PurgeBatchSize),
		alerts:   services.NewAlertMailer(cfg.AlertSendGridAPIKey, cfg.AlertFromEmail, cfg.AlertToEmail),
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
	}

	http.HandleFunc("/", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	http.HandleFunc("/events", w.handleUserDeleted)
	http.HandleFunc("/sweep", w.handleSweep)

	log.Printf("teardown-worker listening on %s maxConcurrent=%d", cfg.ServerAddress, maxConcurrent)
	log.Fatal(http.ListenAndServe(cfg.ServerAddress, nil))
}

// handleUserDeleted consumes identity-deletion events. Delivery is
// at-least-once; the teardown routine is idempotent, so a retried event
// re-runs all steps safely. Any non-swallowed error returns 500 so Eventarc
// redelivers.
func (w *worker) handleUserDeleted(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		log.Printf("[worker] rejected non-POST method=%s", r.Method)
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ceType := r.Header.Get("Ce-Type")
	ceSource := r.Header.Get("Ce-Source")
	log.Printf("[worker] event received: Ce-Type=%s Ce-Source=%s Content-Type=%s",
		ceType, ceSource, r.Header.Get("Content-Type"))

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("[worker] failed to read request body: %v", err)
		http.Error(rw, "bad request", http.StatusBadRequest)
		return
	}

	// Try binary content mode first: event fields at the top level.
	var ev authDeletedEvent
	if err := json.Unmarshal(rawBody, &ev); err != nil {
		log.Printf("[worker] failed to decode event body: %v", err)
		http.Error(rw, "bad request", http.StatusBadRequest)
		return
	}

	// Structured content mode nests the payload under "data".
	if ev.UID == "" {
		var envelope cloudEventEnvelope
		if err := json.Unmarshal(rawBody, &envelope); err == nil && envelope.Data.UID != "" {
			ev = envelope.Data
		}
	}

	if ev.UID == "" {
		log.Printf("[worker] skipping event: uid empty after all parse attempts")
		rw.WriteHeader(http.StatusOK)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	// System-wide cap on concurrent teardowns protects Firestore/Storage
	// quotas when many deletions arrive at once.
	if err := w.sem.Acquire(ctx, 1); err != nil {
		log.Printf("[worker] uid=%s timed out waiting for teardown slot: %v", ev.UID, err)
		http.Error(rw, "busy", http.StatusServiceUnavailable)
		return
	}
	defer w.sem.Release(1)

	log.Printf("[worker] starting teardown uid=%s", ev.UID)
	if err := w.teardown.TeardownUser(ctx, ev.UID); err != nil {
		log.Printf("[worker] teardown failed uid=%s err=%v", ev.UID, err)
		w.alert(ctx, func(ctx context.Context) error {
			return w.alerts.NotifyTeardownFailure(ctx, ev.UID, err)
		})
		// Retry by returning 500; Eventarc will redeliver.
		http.Error(rw, "teardown failed", http.StatusInternalServerError)
		return
	}

	log.Printf("[worker] DONE uid=%s", ev.UID)
	rw.WriteHeader(http.StatusOK)
}

// handleSweep deletes expired groups. Cloud Scheduler POSTs here on an
// interval; expiry is otherwise only enforced by client-side redirects.
func (w *worker) handleSweep(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	deleted, err := w.sweep.SweepExpired(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("[worker] sweep finished with errors deleted=%d err=%v", deleted, err)
		w.alert(ctx, func(ctx context.Context) error {
			return w.alerts.NotifySweepFailure(ctx, deleted, err)
		})
		http.Error(rw, "sweep incomplete", http.StatusInternalServerError)
		return
	}

	log.Printf("[worker] sweep DONE deleted=%d", deleted)
	rw.WriteHeader(http.StatusOK)
}
