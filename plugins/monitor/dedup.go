package monitor

import (
	"github.com/pkg/errors"
	"github.com/timothyfroehlich/DisPinMap-sub000/pkg/pinballmap"
)

// Filter guarantees that automatic polls deliver a submission to a channel at most once
type Filter struct {
	storage Storage
}

func NewFilter(storage Storage) *Filter {
	return &Filter{storage: storage}
}

// FilterNew returns the submissions the channel has not been sent yet
func (f *Filter) FilterNew(channelID string, submissions []pinballmap.Submission) ([]pinballmap.Submission, error) {
	if len(submissions) == 0 {
		return nil, nil
	}

	fresh, err := f.storage.FilterNewSubmissions(channelID, submissions)
	if err != nil {
		return nil, errors.Wrap(err, "unable to filter seen submissions")
	}

	return fresh, nil
}

// MarkSeen records submissions as delivered to the channel
func (f *Filter) MarkSeen(channelID string, submissions []pinballmap.Submission) error {
	if len(submissions) == 0 {
		return nil
	}

	ids := make([]int64, len(submissions))
	for i, submission := range submissions {
		ids[i] = submission.ID
	}

	err := f.storage.MarkSubmissionsSeen(channelID, ids)
	if err != nil {
		return errors.Wrap(err, "unable to mark submissions as seen")
	}

	return nil
}

// uniqueSubmissions drops repeated submission IDs, keeping the first occurrence
func uniqueSubmissions(submissions []pinballmap.Submission) []pinballmap.Submission {
	seen := make(map[int64]struct{}, len(submissions))
	unique := make([]pinballmap.Submission, 0, len(submissions))
	for _, submission := range submissions {
		if _, ok := seen[submission.ID]; ok {
			continue
		}
		seen[submission.ID] = struct{}{}
		unique = append(unique, submission)
	}
	return unique
}
