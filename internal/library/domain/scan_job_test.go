package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/narwhalmedia/catalog/internal/library/domain"
)

type ScanJobTestSuite struct {
	suite.Suite
	job *domain.ScanJob
	now time.Time
}

func (suite *ScanJobTestSuite) SetupTest() {
	suite.job = domain.NewScanJob(uuid.New())
	suite.now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (suite *ScanJobTestSuite) TestLifecycle_Completed() {
	suite.Equal(domain.JobPending, suite.job.State)

	suite.Require().NoError(suite.job.Transition(domain.JobRunning, suite.now))
	suite.Require().NoError(suite.job.Transition(domain.JobCompleted, suite.now.Add(time.Minute)))

	suite.True(suite.job.State.Terminal())
	suite.Equal(time.Minute, suite.job.Duration())
}

func (suite *ScanJobTestSuite) TestTransition_Illegal() {
	err := suite.job.Transition(domain.JobCompleted, suite.now)

	suite.True(errors.Is(err, domain.ErrInvalidTransition))
	suite.Equal(domain.JobPending, suite.job.State)
}

func (suite *ScanJobTestSuite) TestTransition_NoneFromTerminal() {
	suite.Require().NoError(suite.job.Transition(domain.JobRunning, suite.now))
	suite.Require().NoError(suite.job.Transition(domain.JobCancelled, suite.now))

	for _, to := range []domain.JobState{domain.JobRunning, domain.JobCompleted, domain.JobFailed, domain.JobPending} {
		suite.ErrorIs(suite.job.Transition(to, suite.now), domain.ErrInvalidTransition)
	}
}

func (suite *ScanJobTestSuite) TestFail_KeepsCause() {
	suite.Require().NoError(suite.job.Transition(domain.JobRunning, suite.now))

	suite.Require().NoError(suite.job.Fail(errors.New("root unreadable"), suite.now))

	suite.Equal(domain.JobFailed, suite.job.State)
	suite.Equal("root unreadable", suite.job.Error)
}

func (suite *ScanJobTestSuite) TestRecord_TalliesCounts() {
	suite.job.Record(domain.FileOutcome{Path: "a.mkv", Status: domain.OutcomeMatched})
	suite.job.Record(domain.FileOutcome{Path: "b.mkv", Status: domain.OutcomeAmbiguous})
	suite.job.Record(domain.FileOutcome{Path: "c.mkv", Status: domain.OutcomeUnmatched, Reason: "no_results"})
	suite.job.Record(domain.FileOutcome{Path: "d.mkv", Status: domain.OutcomeFailed})
	suite.job.Record(domain.FileOutcome{Path: "locked", Status: domain.OutcomeSkipped})
	suite.job.Record(domain.FileOutcome{Path: "gone.mkv", Status: domain.OutcomeRemoved})

	suite.Equal(domain.ScanCounts{
		Seen: 4, Matched: 1, Ambiguous: 1, Unmatched: 1, Failed: 1, Skipped: 1, Removed: 1,
	}, suite.job.Counts)
	suite.Len(suite.job.Outcomes, 6)
}

func (suite *ScanJobTestSuite) TestClone_IsIndependent() {
	suite.Require().NoError(suite.job.Transition(domain.JobRunning, suite.now))
	suite.job.Record(domain.FileOutcome{Path: "a.mkv", Status: domain.OutcomeMatched})

	snapshot := suite.job.Clone()
	suite.job.Record(domain.FileOutcome{Path: "b.mkv", Status: domain.OutcomeMatched})

	suite.Len(snapshot.Outcomes, 1)
	suite.Equal(1, snapshot.Counts.Matched)
	suite.NotSame(suite.job.StartedAt, snapshot.StartedAt)
}

func (suite *ScanJobTestSuite) TestScanFinishedEvent_TypeFollowsState() {
	suite.Require().NoError(suite.job.Transition(domain.JobRunning, suite.now))
	suite.Require().NoError(suite.job.Fail(errors.New("catalog unreachable"), suite.now))

	event := domain.NewScanFinishedEvent(suite.job)

	suite.Equal(domain.EventScanFailed, event.EventType())
	suite.Equal(suite.job.ID.String(), event.AggregateID())
	suite.Equal("catalog unreachable", event.Error)
}

func TestScanJobTestSuite(t *testing.T) {
	suite.Run(t, new(ScanJobTestSuite))
}

func TestParseKind(t *testing.T) {
	k, err := domain.ParseKind("show")
	if err != nil || k != domain.KindShow || !k.ShowShaped() {
		t.Fatalf("unexpected kind %q err %v", k, err)
	}
	if _, err := domain.ParseKind("music"); !errors.Is(err, domain.ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}
