// Package enrich fans out secondary GitHub fetches that decorate already
// fetched entities with detail the list endpoints omit. Enrichment is
// fault tolerant per entity: a failed sub-fetch leaves that entity with its
// base fields and never fails the batch.
package enrich

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gitboard/gitboard/internal/githubapi"
)

// DefaultConcurrency bounds parallel enrichment sub-fetches.
const DefaultConcurrency = 8

// Enricher decorates repositories and commits with secondary fetch results.
type Enricher struct {
	data        *githubapi.DataClient
	logger      *zap.Logger
	concurrency int
}

// New creates an enricher. concurrency <= 0 selects DefaultConcurrency.
func New(data *githubapi.DataClient, logger *zap.Logger, concurrency int) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Enricher{data: data, logger: logger, concurrency: concurrency}
}

// Repositories fills Languages, Contributors, and ContributorCount on each
// repository in place. Results land at the same index they started at, so the
// caller's ordering survives the fan-out. Only context cancellation aborts
// the batch.
func (e *Enricher) Repositories(ctx context.Context, repos []githubapi.Repository) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.concurrency)

	for i := range repos {
		i := i
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			e.enrichRepository(groupCtx, &repos[i])
			return nil
		})
	}
	return group.Wait()
}

func (e *Enricher) enrichRepository(ctx context.Context, repo *githubapi.Repository) {
	languages, err := e.data.GetRepoLanguages(ctx, repo.FullName)
	switch {
	case err != nil:
		e.logger.Debug("language enrichment failed",
			zap.String("repo", repo.FullName),
			zap.Error(err),
		)
	case languages.Status == githubapi.EndpointStatusOK:
		repo.Languages = languages.Languages
	}

	contributors, err := e.data.ListRepoContributors(ctx, repo.FullName)
	switch {
	case err != nil:
		e.logger.Debug("contributor enrichment failed",
			zap.String("repo", repo.FullName),
			zap.Error(err),
		)
	case contributors.Status == githubapi.EndpointStatusOK:
		repo.Contributors = contributors.Contributors
		repo.ContributorCount = len(contributors.Contributors)
	}
}

// Commits fills Stats and Files on each commit in place via per-SHA detail
// fetches. Index stable and fault tolerant like Repositories.
func (e *Enricher) Commits(ctx context.Context, fullName string, commits []githubapi.Commit) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.concurrency)

	for i := range commits {
		i := i
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			e.enrichCommit(groupCtx, fullName, &commits[i])
			return nil
		})
	}
	return group.Wait()
}

func (e *Enricher) enrichCommit(ctx context.Context, fullName string, commit *githubapi.Commit) {
	detail, err := e.data.GetCommit(ctx, fullName, commit.SHA)
	if err != nil {
		e.logger.Debug("commit enrichment failed",
			zap.String("repo", fullName),
			zap.String("sha", commit.SHA),
			zap.Error(err),
		)
		return
	}
	if detail.Status != githubapi.EndpointStatusOK {
		return
	}

	stats := detail.Stats
	commit.Stats = &stats
	commit.Files = detail.Files
}

// UserProfile fills the profile's Events, Orgs, and Starred enrichment
// fields. The three sub-fetches run concurrently; each failure leaves its
// field empty.
func (e *Enricher) UserProfile(ctx context.Context, user *githubapi.User) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.concurrency)

	group.Go(func() error {
		events, err := e.data.ListUserEvents(groupCtx, user.Login)
		if err != nil {
			e.logger.Debug("event enrichment failed", zap.Error(err))
			return nil
		}
		if events.Status == githubapi.EndpointStatusOK {
			user.Events = events.Events
		}
		return nil
	})

	group.Go(func() error {
		orgs, err := e.data.ListViewerOrgs(groupCtx)
		if err != nil {
			e.logger.Debug("organization enrichment failed", zap.Error(err))
			return nil
		}
		if orgs.Status == githubapi.EndpointStatusOK {
			user.Orgs = orgs.Orgs
		}
		return nil
	})

	group.Go(func() error {
		starred, err := e.data.ListViewerStarred(groupCtx)
		if err != nil {
			e.logger.Debug("starred enrichment failed", zap.Error(err))
			return nil
		}
		if starred.Status == githubapi.EndpointStatusOK {
			user.Starred = starred.Repos
		}
		return nil
	})

	return group.Wait()
}
