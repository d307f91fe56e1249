// Package core holds the coverage domain logic shared by the CLI and the servers.
package core

import (
	"errors"
	"fmt"

	"github.com/covhub/covhub/core/agg"
	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/schema"
)

// ReportService reconstructs reports from commits and their archives.
type ReportService struct {
	archive contract.ArchiveStore
}

// NewReportService creates a report service reading chunk archives from archive.
// A nil archive builds reports from the stored index only.
func NewReportService(archive contract.ArchiveStore) *ReportService {
	return &ReportService{archive: archive}
}

// BuildReportFromCommit reconstructs the report of a commit.
// A commit without a report index yields an empty report carrying the commit totals.
func (s *ReportService) BuildReportFromCommit(commit *schema.Commit) (*agg.Report, error) {
	idx, err := agg.ParseIndex(commit.Report)
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", commit.CommitID, err)
	}
	if idx.Totals == nil && commit.Totals != nil {
		idx.Totals = commit.Totals
	}

	chunks, err := s.loadChunks(commit)
	if err != nil {
		return nil, err
	}

	report, err := agg.BuildReport(idx, chunks)
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", commit.CommitID, err)
	}
	return report, nil
}

// StoreArchive writes the report index onto the commit and the chunks into the archive.
func (s *ReportService) StoreArchive(commit *schema.Commit, report *agg.Report, timestamp int64) error {
	index, chunks, err := agg.EncodeArchive(report)
	if err != nil {
		return err
	}
	commit.Report = index
	if s.archive == nil {
		return nil
	}
	return s.archive.Set(agg.ArchivePath(commit.RepositoryID, commit.CommitID), chunks, archiveVersion, timestamp)
}

// archiveVersion tags archive blobs written by this version of the format.
const archiveVersion = 1

func (s *ReportService) loadChunks(commit *schema.Commit) ([]byte, error) {
	if s.archive == nil || len(commit.Report) == 0 {
		return nil, nil
	}
	data, _, _, err := s.archive.Get(agg.ArchivePath(commit.RepositoryID, commit.CommitID))
	if errors.Is(err, contract.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read archive for commit %s: %w", commit.CommitID, err)
	}
	return data, nil
}
