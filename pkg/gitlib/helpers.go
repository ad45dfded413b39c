package gitlib

// ReverseCommits reverses the order of commits in place (newest-first to oldest-first).
func ReverseCommits(commits []*Commit) {
	for i, j := 0, len(commits)-1; i < j; i, j = i+1, j-1 {
		commits[i], commits[j] = commits[j], commits[i]
	}
}

// AllCommits enumerates every commit reachable from HEAD, oldest first
// (committer-time order with parents before children; author dates are not
// consulted), matching the Repository Manager's enumeration contract
// (spec §4.A).
func AllCommits(repository *Repository) ([]*Commit, error) {
	iter, err := repository.Log()
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var commits []*Commit

	for {
		commit, nextErr := iter.Next()
		if nextErr != nil {
			break
		}

		commits = append(commits, commit)
	}

	ReverseCommits(commits)

	return commits, nil
}
