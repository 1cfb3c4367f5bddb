package lockout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *MemoryStore
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemoryStore()
}

func (s *MemoryStoreSuite) TestGet() {
	ctx := context.Background()

	s.Run("missing identifier returns nil without error", func() {
		record, err := s.store.Get(ctx, "unknown")
		s.NoError(err)
		s.Nil(record)
	})

	s.Run("returned record is a copy", func() {
		now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
		_, err := s.store.RecordFailure(ctx, "id", now, 15*time.Minute)
		s.Require().NoError(err)

		first, err := s.store.Get(ctx, "id")
		s.Require().NoError(err)
		first.FailureCount = 99

		second, err := s.store.Get(ctx, "id")
		s.Require().NoError(err)
		s.Equal(1, second.FailureCount, "mutating a returned record must not affect the store")
	})
}

func (s *MemoryStoreSuite) TestRecordFailure() {
	ctx := context.Background()
	window := 15 * time.Minute
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	s.Run("first failure initializes the record", func() {
		record, err := s.store.RecordFailure(ctx, "fresh", base, window)
		s.Require().NoError(err)
		s.Equal("fresh", record.Identifier)
		s.Equal(1, record.FailureCount)
		s.Equal(base, record.LastFailureAt)
		s.Nil(record.LockedUntil)
	})

	s.Run("failures inside the window accumulate", func() {
		_, err := s.store.RecordFailure(ctx, "repeat", base, window)
		s.Require().NoError(err)
		record, err := s.store.RecordFailure(ctx, "repeat", base.Add(time.Minute), window)
		s.Require().NoError(err)
		s.Equal(2, record.FailureCount)
		s.Equal(base.Add(time.Minute), record.LastFailureAt)
	})

	s.Run("an elapsed window restarts the count", func() {
		_, err := s.store.RecordFailure(ctx, "stale", base, window)
		s.Require().NoError(err)
		record, err := s.store.RecordFailure(ctx, "stale", base.Add(window+time.Second), window)
		s.Require().NoError(err)
		s.Equal(1, record.FailureCount)
	})
}

func (s *MemoryStoreSuite) TestUpdateAndClear() {
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	s.Run("update overwrites the stored record", func() {
		_, err := s.store.RecordFailure(ctx, "id", base, 15*time.Minute)
		s.Require().NoError(err)

		until := base.Add(15 * time.Minute)
		s.Require().NoError(s.store.Update(ctx, &Record{
			Identifier:    "id",
			FailureCount:  10,
			LockedUntil:   &until,
			LastFailureAt: base,
		}))

		record, err := s.store.Get(ctx, "id")
		s.Require().NoError(err)
		s.Equal(10, record.FailureCount)
		s.Require().NotNil(record.LockedUntil)
		s.Equal(until, *record.LockedUntil)
	})

	s.Run("clear removes the record", func() {
		_, err := s.store.RecordFailure(ctx, "gone", base, 15*time.Minute)
		s.Require().NoError(err)

		s.Require().NoError(s.store.Clear(ctx, "gone"))

		record, err := s.store.Get(ctx, "gone")
		s.NoError(err)
		s.Nil(record)
	})

	s.Run("clearing a missing record is a no-op", func() {
		s.NoError(s.store.Clear(ctx, "never-existed"))
	})
}
