package reading

import (
	"context"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/nerrad567/ips-core/internal/infrastructure/database"
)

func TestRepository_Latest_Empty(t *testing.T) {
	g := NewWithT(t)
	_, p := testDB(t)

	_, err := NewRepository(p).Latest(context.Background())
	g.Expect(err).To(MatchError(ErrNotFound))
}

func TestRepository_InsertThenLatest(t *testing.T) {
	g := NewWithT(t)
	_, p := testDB(t)
	repo := NewRepository(p)
	ctx := context.Background()

	before := time.Now().UTC().Add(-time.Second)
	stored, err := repo.Insert(ctx, validUpload())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(stored.Timestamp).To(BeTemporally(">=", before))

	latest, err := repo.Latest(ctx)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(latest.Temperature).To(Equal(22.5))
	g.Expect(latest.GasLevel).To(Equal(310.0))
	g.Expect(latest.LightIntensity).To(Equal(0.75))
	g.Expect(latest.FireDetected).To(BeFalse())
	g.Expect(latest.FanStatus).To(BeTrue())
	g.Expect(latest.LEDStatus).To(BeTrue())
	g.Expect(latest.Timestamp).To(BeTemporally("~", stored.Timestamp, time.Millisecond))
}

func TestRepository_Latest_MaxTimestamp(t *testing.T) {
	g := NewWithT(t)
	db, p := testDB(t)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	// Inserted out of order: the newest row is neither first nor last.
	insertAt(t, db, 1, base.Add(2*time.Minute))
	insertAt(t, db, 2, base.Add(10*time.Minute))
	insertAt(t, db, 3, base)
	insertAt(t, db, 4, base.Add(5*time.Minute))

	latest, err := NewRepository(p).Latest(context.Background())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(latest.Temperature).To(Equal(2.0))
	g.Expect(latest.Timestamp).To(BeTemporally("~", base.Add(10*time.Minute), time.Millisecond))
}

func TestRepository_Count(t *testing.T) {
	g := NewWithT(t)
	_, p := testDB(t)
	repo := NewRepository(p)
	ctx := context.Background()

	n, err := repo.Count(ctx)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(n).To(BeZero())

	_, err = repo.Insert(ctx, validUpload())
	g.Expect(err).NotTo(HaveOccurred())

	n, err = repo.Count(ctx)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(n).To(Equal(1))
}

func TestRepository_ConcurrentInserts(t *testing.T) {
	g := NewWithT(t)
	_, p := testDB(t)
	repo := NewRepository(p)
	ctx := context.Background()

	const uploads = 8
	var wg sync.WaitGroup
	errs := make(chan error, uploads)
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := validUpload()
			u.Temperature = float64(i)
			if _, err := repo.Insert(ctx, u); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		g.Expect(err).NotTo(HaveOccurred())
	}
	n, err := repo.Count(ctx)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(n).To(Equal(uploads))
}

func TestRepository_StoreFailure(t *testing.T) {
	g := NewWithT(t)
	repo := NewRepository(failingProvider{err: database.ErrConnectionFailed})
	ctx := context.Background()

	_, err := repo.Latest(ctx)
	g.Expect(err).To(MatchError(database.ErrConnectionFailed))
	g.Expect(err).NotTo(MatchError(ErrNotFound))

	_, err = repo.Insert(ctx, validUpload())
	g.Expect(err).To(MatchError(database.ErrConnectionFailed))

	_, err = repo.Count(ctx)
	g.Expect(err).To(MatchError(database.ErrConnectionFailed))
}

func TestStoreTime_Scan(t *testing.T) {
	want := time.Date(2025, 3, 1, 12, 30, 15, 123000000, time.UTC)

	tests := []struct {
		name string
		src  any
	}{
		{"time value", want},
		{"sqlite default text", "2025-03-01 12:30:15.123"},
		{"bytes", []byte("2025-03-01 12:30:15.123")},
		{"rfc3339", "2025-03-01T12:30:15.123Z"},
		{"with offset", "2025-03-01 13:30:15.123+01:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			var ts storeTime
			g.Expect(ts.Scan(tt.src)).To(Succeed())
			g.Expect(ts.Time.Equal(want)).To(BeTrue(), "got %v", ts.Time)
		})
	}

	t.Run("rejects garbage", func(t *testing.T) {
		g := NewWithT(t)
		var ts storeTime
		g.Expect(ts.Scan("yesterday")).NotTo(Succeed())
		g.Expect(ts.Scan(42)).NotTo(Succeed())
	})
}
