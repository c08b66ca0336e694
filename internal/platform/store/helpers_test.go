package store

import (
	"context"
	"errors"
	"testing"

	perr "poshub/internal/platform/errors"
)

type fakeTag int64

func (f fakeTag) String() string      { return "UPDATE" }
func (f fakeTag) RowsAffected() int64 { return int64(f) }

type fakeRows struct {
	vals []int
	i    int
	err  error
}

func (r *fakeRows) Next() bool { r.i++; return r.i <= len(r.vals) }
func (r *fakeRows) Scan(dest ...any) error {
	*(dest[0].(*int)) = r.vals[r.i-1]
	return nil
}
func (r *fakeRows) Err() error { return r.err }
func (r *fakeRows) Close()     {}

type rowFunc func(dest ...any) error

func (f rowFunc) Scan(dest ...any) error { return f(dest...) }

type fakeQuerier struct {
	tag  CommandTag
	err  error
	rows *fakeRows
	row  Row
}

func (f *fakeQuerier) Exec(context.Context, string, ...any) (CommandTag, error) { return f.tag, f.err }
func (f *fakeQuerier) Query(context.Context, string, ...any) (Rows, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}
func (f *fakeQuerier) QueryRow(context.Context, string, ...any) Row { return f.row }

func TestExecOne(t *testing.T) {
	ctx := context.Background()
	if err := ExecOne(ctx, &fakeQuerier{tag: fakeTag(1)}, "x"); err != nil {
		t.Fatalf("one row: %v", err)
	}
	if err := ExecOne(ctx, &fakeQuerier{tag: fakeTag(0)}, "x"); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("zero rows: %v", err)
	}
	if err := ExecOne(ctx, &fakeQuerier{tag: fakeTag(3)}, "x"); !perr.IsCode(err, perr.ErrorCodeConflict) {
		t.Fatalf("many rows: %v", err)
	}
	if err := ExecOne(ctx, &fakeQuerier{err: errors.New("boom")}, "x"); !perr.IsCode(err, perr.ErrorCodeDB) {
		t.Fatalf("exec error: %v", err)
	}
}

func TestScalar(t *testing.T) {
	q := &fakeQuerier{row: rowFunc(func(dest ...any) error {
		*(dest[0].(*int64)) = 7
		return nil
	})}
	n, err := Scalar[int64](context.Background(), q, "SELECT 7")
	if err != nil || n != 7 {
		t.Fatalf("got %d, %v", n, err)
	}

	q.row = rowFunc(func(...any) error { return errors.New("no rows") })
	if _, err := Scalar[int64](context.Background(), q, "SELECT 7"); err == nil {
		t.Fatal("want scan error")
	}
}

func TestMany(t *testing.T) {
	scan := func(r Row) (int, error) {
		var v int
		err := r.Scan(&v)
		return v * 10, err
	}
	got, err := Many(context.Background(), &fakeQuerier{rows: &fakeRows{vals: []int{1, 2, 3}}}, scan, "q")
	if err != nil || len(got) != 3 || got[2] != 30 {
		t.Fatalf("got %v, %v", got, err)
	}

	iterErr := errors.New("iter")
	if _, err := Many(context.Background(), &fakeQuerier{rows: &fakeRows{err: iterErr}}, scan, "q"); !errors.Is(err, iterErr) {
		t.Fatalf("want iter error, got %v", err)
	}
}
