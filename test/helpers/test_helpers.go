package helpers

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/conciliai/reconcile-gateway/internal/model"
	"github.com/conciliai/reconcile-gateway/internal/repository"
	"github.com/conciliai/reconcile-gateway/pkg/pg"
	"github.com/conciliai/reconcile-gateway/pkg/redis"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.ProfileEntity{},
		&repository.BatchEntity{},
		&repository.TransactionEntity{},
		&repository.AttemptEntity{},
	)
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	adapter, err := redis.NewRedisAdapter("test", "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestProfile(t *testing.T, db *pg.DB, email string, tier model.UserTier, credits uint) *repository.ProfileEntity {
	ctx := context.Background()
	profile := &repository.ProfileEntity{
		ID:               uuid.NewString(),
		Email:            email,
		Tier:             string(tier),
		CreditsRemaining: credits,
	}
	err := db.Write(ctx).Create(profile).Error
	require.NoError(t, err)
	return profile
}

func CreateTestBatch(t *testing.T, db *pg.DB, userID string, source model.TransactionSource) *repository.BatchEntity {
	ctx := context.Background()
	batch := &repository.BatchEntity{
		ID:       uuid.NewString(),
		UserID:   userID,
		Filename: "statement.pdf",
		Source:   string(source),
	}
	err := db.Write(ctx).Create(batch).Error
	require.NoError(t, err)
	return batch
}

func CreateTestTransaction(t *testing.T, db *pg.DB, userID, batchID string, amount int64, source model.TransactionSource) *repository.TransactionEntity {
	ctx := context.Background()
	var batchRef *string
	if batchID != "" {
		batchRef = &batchID
	}
	txn := &repository.TransactionEntity{
		ID:          uuid.NewString(),
		BatchID:     batchRef,
		UserID:      userID,
		Date:        "2025-03-05",
		Description: "PAGO PROVEEDOR",
		AmountCents: amount,
		Source:      string(source),
		Status:      string(model.StatusPending),
	}
	err := db.Write(ctx).Create(txn).Error
	require.NoError(t, err)
	return txn
}

func CreateTestAttempt(t *testing.T, db *pg.DB, userID string, state model.AttemptState, units int) *repository.AttemptEntity {
	ctx := context.Background()
	attempt := &repository.AttemptEntity{
		ID:        uuid.NewString(),
		UserID:    userID,
		Filename:  "statement.pdf",
		Source:    string(model.SourceBank),
		UnitCount: units,
		State:     string(state),
		RawText:   "SALDO ANTERIOR $1,000.00",
	}
	err := db.Write(ctx).Create(attempt).Error
	require.NoError(t, err)
	return attempt
}

// BuildTestPDF assembles a minimal valid PDF with the given page count, so
// pre-check page counting can run against real bytes.
func BuildTestPDF(pages int) []byte {
	var body strings.Builder
	var offsets []int

	body.WriteString("%PDF-1.4\n")

	addObj := func(s string) {
		offsets = append(offsets, body.Len())
		body.WriteString(s)
	}

	addObj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	kids := make([]string, pages)
	for i := 0; i < pages; i++ {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	addObj(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n",
		strings.Join(kids, " "), pages))

	for i := 0; i < pages; i++ {
		addObj(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>\nendobj\n", i+3))
	}

	xrefStart := body.Len()
	body.WriteString(fmt.Sprintf("xref\n0 %d\n", len(offsets)+1))
	body.WriteString("0000000000 65535 f\r\n")
	for _, off := range offsets {
		body.WriteString(fmt.Sprintf("%010d 00000 n\r\n", off))
	}
	body.WriteString(fmt.Sprintf("trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, xrefStart))

	return []byte(body.String())
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
