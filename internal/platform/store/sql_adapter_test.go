package store

import (
	"context"
	"errors"
	"testing"

	"poshub/internal/platform/store/pg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeTx implements the parts of pgx.Tx the adapter calls; anything else panics
type fakeTx struct {
	pgx.Tx
	log *[]string
}

func (f fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	*f.log = append(*f.log, sql)
	return pgconn.NewCommandTag("UPDATE 1"), nil
}
func (f fakeTx) Commit(context.Context) error   { *f.log = append(*f.log, "commit"); return nil }
func (f fakeTx) Rollback(context.Context) error { *f.log = append(*f.log, "rollback"); return nil }

type events struct{ got []pg.QueryEvent }

func (e *events) OnQuery(_ context.Context, ev pg.QueryEvent) { e.got = append(e.got, ev) }

func beginner(log *[]string) func(context.Context) (pgx.Tx, error) {
	return func(context.Context) (pgx.Tx, error) {
		*log = append(*log, "begin")
		return fakeTx{log: log}, nil
	}
}

func TestRunTxRetriesSerializationFailure(t *testing.T) {
	var log []string
	ev := &events{}
	calls := 0
	err := runTx(context.Background(), beginner(&log), traced{tracer: ev, slowUS: -1}, func(q RowQuerier) error {
		calls++
		if _, err := q.Exec(context.Background(), "UPDATE t SET x = $1", 1); err != nil {
			return err
		}
		if calls == 1 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"begin", "UPDATE t SET x = $1", "rollback", "begin", "UPDATE t SET x = $1", "commit"}
	if len(log) != len(want) {
		t.Fatalf("log = %v", log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("log[%d] = %q want %q (%v)", i, log[i], want[i], log)
		}
	}
	if len(ev.got) != 2 || ev.got[0].NArgs != 1 || ev.got[0].Slow {
		t.Fatalf("events = %+v", ev.got)
	}
}

func TestRunTxStopsOnPermanentError(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	calls := 0
	err := runTx(context.Background(), beginner(&log), traced{}, func(RowQuerier) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestRunTxGivesUp(t *testing.T) {
	var log []string
	calls := 0
	err := runTx(context.Background(), beginner(&log), traced{}, func(RowQuerier) error {
		calls++
		return &pgconn.PgError{Code: "40P01"}
	})
	if err == nil || calls != txAttempts {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestRunTxRollsBackOnPanic(t *testing.T) {
	var log []string
	defer func() {
		if recover() == nil {
			t.Fatal("panic swallowed")
		}
		if len(log) != 2 || log[1] != "rollback" {
			t.Fatalf("log = %v", log)
		}
	}()
	_ = runTx(context.Background(), beginner(&log), traced{}, func(RowQuerier) error { panic("fn") })
}
