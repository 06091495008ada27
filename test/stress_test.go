package test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/exec"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"letterflow/disposition"
	"letterflow/letter"
	"letterflow/test/infra"
)

var (
	flDuration    = flag.Duration("duration", 30*time.Second, "how long to run the append race")
	flConcurrency = flag.Int("concurrency", 8, "number of concurrent appenders")
	flSeed        = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flDSN         = flag.String("dsn", "", "existing Postgres DSN to reuse (avoids Docker)")
)

// TestChainAppendRace hammers a single letter's chain with concurrent
// appends. Every round exactly one appender may win; the chain must stay a
// linear list with contiguous sequence numbers no matter how the race goes.
func TestChainAppendRace(t *testing.T) {
	flag.Parse()
	rng := rand.New(rand.NewSource(*flSeed))

	ctx, cancel := context.WithTimeout(context.Background(), *flDuration+60*time.Second)
	defer cancel()

	pool, teardown := setupDatabase(t, ctx)
	defer pool.Close()
	defer func() {
		if err := teardown(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	}()

	seed := mustSeed(t, ctx, pool)
	repo := disposition.NewRepository(pool)

	// Open the chain so every worker races over continuations.
	root, err := repo.Create(ctx, disposition.CreateParams{
		LetterID:    seed.letterID,
		SubmitterID: seed.deanID,
		RecipientID: &seed.staffIDs[0],
		Message:     "initial routing",
		Status:      disposition.StatusToDeputyDean,
	})
	if err != nil {
		t.Fatalf("open chain: %v", err)
	}
	if root.Seq != 1 {
		t.Fatalf("root seq = %d, want 1", root.Seq)
	}

	// Non-terminal continuations only, so the chain never closes mid-run.
	nextStatuses := []disposition.Status{
		disposition.StatusToDeputyDean,
		disposition.StatusToProgramHead,
		disposition.StatusToAdminStaff,
		disposition.StatusAwaitingResponse,
		disposition.StatusNeedsFollowUp,
	}

	var wins, losses atomic.Int64
	deadline := time.Now().Add(*flDuration)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < *flConcurrency; i++ {
		workerSeed := rng.Int63()
		g.Go(func() error {
			wr := rand.New(rand.NewSource(workerSeed))
			for time.Now().Before(deadline) {
				chain, err := repo.ChainByLetter(gctx, seed.letterID)
				if err != nil {
					return fmt.Errorf("read chain: %w", err)
				}
				tail, ok := disposition.CurrentTail(chain)
				if !ok {
					return fmt.Errorf("chain lost its root")
				}

				next := nextStatuses[wr.Intn(len(nextStatuses))]
				if next == tail.Status {
					continue
				}
				parentID := tail.ID
				recipient := seed.staffIDs[wr.Intn(len(seed.staffIDs))]

				_, err = repo.Create(gctx, disposition.CreateParams{
					LetterID:    seed.letterID,
					ParentID:    &parentID,
					SubmitterID: seed.staffIDs[wr.Intn(len(seed.staffIDs))],
					RecipientID: &recipient,
					Message:     fmt.Sprintf("race step %d", wr.Int63()),
					Status:      next,
				})
				switch {
				case err == nil:
					wins.Add(1)
				case errors.Is(err, disposition.ErrConflict):
					losses.Add(1)
				case errors.Is(gctx.Err(), context.Canceled), errors.Is(gctx.Err(), context.DeadlineExceeded):
					return nil
				default:
					return fmt.Errorf("append: %w", err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		dumpChain(t, ctx, pool, seed.letterID)
		t.Fatalf("appenders errored: %v (seed=%d)", err, *flSeed)
	}

	t.Logf("append race finished: %d wins, %d conflicts (seed=%d)", wins.Load(), losses.Load(), *flSeed)
	if wins.Load() == 0 {
		t.Fatal("no append ever won; the race exercised nothing")
	}

	checkChainInvariants(t, ctx, pool, seed.letterID, int(wins.Load())+1)
}

// TestDeletionRequestRace files concurrent deletion requests for one letter;
// exactly one may land, the rest must see the pending error.
func TestDeletionRequestRace(t *testing.T) {
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, teardown := setupDatabase(t, ctx)
	defer pool.Close()
	defer func() {
		if err := teardown(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	}()

	seed := mustSeed(t, ctx, pool)
	repo := letter.NewRepository(pool)

	var filed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < *flConcurrency; i++ {
		requester := seed.staffIDs[i%len(seed.staffIDs)]
		g.Go(func() error {
			_, err := repo.RequestDeletion(gctx, seed.letterID, requester, "stress duplicate")
			switch {
			case err == nil:
				filed.Add(1)
				return nil
			case errors.Is(err, letter.ErrRequestPending):
				return nil
			default:
				return fmt.Errorf("request deletion: %w", err)
			}
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("requesters errored: %v", err)
	}
	if got := filed.Load(); got != 1 {
		t.Fatalf("expected exactly one filed request, got %d", got)
	}

	var open int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM deletion_requests WHERE letter_id = $1 AND status = 'REQUESTED'`, seed.letterID).Scan(&open); err != nil {
		t.Fatalf("count open requests: %v", err)
	}
	if open != 1 {
		t.Fatalf("expected one open request row, got %d", open)
	}
}

func setupDatabase(t *testing.T, ctx context.Context) (*pgxpool.Pool, func(context.Context) error) {
	t.Helper()

	var (
		pgC        *infra.PGContainer
		dsn        string
		err        error
		usedShared bool
	)

	switch {
	case *flDSN != "":
		dsn = *flDSN
		usedShared = true
		pgC = &infra.PGContainer{}
	case os.Getenv("LETTERFLOW_TEST_PG_DSN") != "":
		dsn = os.Getenv("LETTERFLOW_TEST_PG_DSN")
		usedShared = true
		pgC = &infra.PGContainer{}
	default:
		if dockerAvailable(ctx) {
			pgC, dsn, err = infra.StartPostgres16(ctx, "")
			if err != nil {
				t.Fatalf("start postgres: %v", err)
			}
		} else {
			dsn, err = infra.InitLocalDatabase(ctx)
			if err != nil {
				t.Skipf("no Docker and no local postgres: %v", err)
			}
			pgC = &infra.PGContainer{}
		}
	}
	t.Cleanup(func() { _ = pgC.Terminate(context.Background()) })

	pool, teardown, err := infra.ApplyMigrations(ctx, dsn, usedShared)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return pool, teardown
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}

type seedIDs struct {
	deanID   string
	staffIDs []string
	letterID string
}

func mustSeed(t *testing.T, ctx context.Context, pool *pgxpool.Pool) seedIDs {
	t.Helper()
	var s seedIDs

	insertUser := `
INSERT INTO users (nip, email, full_name, password_hash, role_id, position)
VALUES ($1, $2, $3, 'x', $4, $5)
RETURNING id
`
	suffix := rand.Int63()
	if err := pool.QueryRow(ctx, insertUser,
		fmt.Sprintf("dean-%d", suffix), fmt.Sprintf("dean%d@example.com", suffix),
		"Stress Dean", disposition.RoleLeadership, "dean",
	).Scan(&s.deanID); err != nil {
		t.Fatalf("seed dean: %v", err)
	}

	for i := 0; i < 4; i++ {
		var id string
		if err := pool.QueryRow(ctx, insertUser,
			fmt.Sprintf("staff-%d-%d", suffix, i), fmt.Sprintf("staff%d.%d@example.com", suffix, i),
			fmt.Sprintf("Stress Staff %d", i), disposition.RoleGeneral, "admin staff",
		).Scan(&id); err != nil {
			t.Fatalf("seed staff %d: %v", i, err)
		}
		s.staffIDs = append(s.staffIDs, id)
	}

	const insertLetter = `
INSERT INTO letters (reference_no, agenda_no, subject, sender, archivist_id, received_at)
VALUES ($1, 1, 'Stress letter', 'External Org', $2, now())
RETURNING id
`
	if err := pool.QueryRow(ctx, insertLetter, fmt.Sprintf("REF/%d", suffix), s.deanID).Scan(&s.letterID); err != nil {
		t.Fatalf("seed letter: %v", err)
	}
	return s
}

func checkChainInvariants(t *testing.T, ctx context.Context, pool *pgxpool.Pool, letterID string, wantLen int) {
	t.Helper()

	var total, roots, distinctParents int
	if err := pool.QueryRow(ctx, `
SELECT count(*),
       count(*) FILTER (WHERE parent_id IS NULL),
       count(DISTINCT parent_id) FILTER (WHERE parent_id IS NOT NULL)
FROM dispositions WHERE letter_id = $1`, letterID).Scan(&total, &roots, &distinctParents); err != nil {
		t.Fatalf("chain shape query: %v", err)
	}
	if total != wantLen {
		t.Errorf("chain length %d, want %d", total, wantLen)
	}
	if roots != 1 {
		t.Errorf("chain has %d roots, want 1", roots)
	}
	if distinctParents != total-1 {
		t.Errorf("chain is not linear: %d distinct parents for %d records", distinctParents, total)
	}

	var gaps int
	if err := pool.QueryRow(ctx, `
SELECT count(*) FROM (
    SELECT seq, lag(seq) OVER (ORDER BY seq) AS prev
    FROM dispositions WHERE letter_id = $1
) s WHERE prev IS NOT NULL AND seq <> prev + 1`, letterID).Scan(&gaps); err != nil {
		t.Fatalf("seq gap query: %v", err)
	}
	if gaps != 0 {
		dumpChain(t, ctx, pool, letterID)
		t.Errorf("sequence numbers have %d gaps", gaps)
	}

	var sameStatusAdjacent int
	if err := pool.QueryRow(ctx, `
SELECT count(*) FROM dispositions c
JOIN dispositions p ON p.id = c.parent_id
WHERE c.letter_id = $1 AND c.status_id = p.status_id`, letterID).Scan(&sameStatusAdjacent); err != nil {
		t.Fatalf("adjacent status query: %v", err)
	}
	if sameStatusAdjacent != 0 {
		t.Errorf("%d records repeat their parent's status", sameStatusAdjacent)
	}
}

func dumpChain(t *testing.T, ctx context.Context, pool *pgxpool.Pool, letterID string) {
	t.Helper()
	rows, err := pool.Query(ctx, `
SELECT id, parent_id, submitter_id, status_id, seq, created_at
FROM dispositions WHERE letter_id = $1 ORDER BY seq ASC LIMIT 100`, letterID)
	if err != nil {
		t.Logf("dump chain error: %v", err)
		return
	}
	defer rows.Close()
	t.Logf("-- dispositions --")
	for rows.Next() {
		vals, _ := rows.Values()
		t.Logf("%v", vals)
	}
}
