package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"tabi-api/board"
	"tabi-api/domain"
)

// postMutations applies a batch of mutation intents to a room's board in
// one document-store transaction and schedules the committed mutations for
// broadcast. Writing requires a READ_WRITE session grant for the room.
// Mutations whose targets are gone are skipped, not failed: the shared
// document is the single source of truth the UI reflects.
func postMutations(deps *Deps) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		roomID := c.Param("room")
		metrics, spanCtx := newMutationRequestMetrics(ctx, deps.Logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, roomID, err)
		}()

		token, tokenErr := bearerTokenFromHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if tokenErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, tokenErr.Error())
			return err
		}
		grant, verifyErr := deps.Issuer.Verify(token)
		if verifyErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, "invalid session")
			return err
		}
		if grant.Capability != domain.CapabilityReadWrite || grant.RoomID != roomID {
			metrics.SetErrorStage("capability")
			err = c.String(http.StatusForbidden, "session does not allow writing to this room")
			return err
		}

		lr := io.LimitReader(c.Request().Body, postMutationsMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)
		dec.DisallowUnknownFields()

		muts := make([]domain.Mutation, 0, 4)
		if decErr := dec.Decode(&muts); decErr != nil {
			metrics.SetErrorStage("decode")
			err = c.String(http.StatusBadRequest, "invalid body")
			return err
		}

		keys := make([]string, len(muts))
		for i := range muts {
			if muts[i].IdempotencyKey == "" {
				muts[i].IdempotencyKey = uuid.NewString()
			}
			muts[i].ID = muts[i].IdempotencyKey
			muts[i].Timestamp = nextTimestamp()
			keys[i] = muts[i].IdempotencyKey
		}

		fresh := muts
		duplicates := 0
		if deps.Deduper != nil && len(muts) > 0 {
			added, dedupeErr := deps.Deduper.AddMany(ctx, roomID, keys)
			if dedupeErr != nil {
				// dedupe is a guard, not a gate: apply the batch anyway
				deps.Logger.Warnf("deduper unavailable, applying batch without replay protection: %v", dedupeErr)
			} else {
				fresh = fresh[:0]
				for i, ok := range added {
					if ok {
						fresh = append(fresh, muts[i])
					} else {
						duplicates++
					}
				}
			}
		}

		applied, ignoredCount := 0, 0
		if len(fresh) > 0 {
			results := make([]board.Result, len(fresh))
			applyStart := time.Now()
			revision, updateErr := deps.Boards.Update(ctx, roomID, func(b *domain.Board) (bool, error) {
				commit := false
				for i := range fresh {
					results[i] = board.Apply(b, grant.PrincipalID, fresh[i])
					if results[i].Applied {
						commit = true
					}
				}
				return commit, nil
			})
			metrics.ObserveApply(time.Since(applyStart))
			if updateErr != nil {
				rollbackDedupe(deps, roomID, fresh)
				metrics.SetErrorStage("store")
				c.Logger().Error(updateErr)
				err = c.String(http.StatusInternalServerError, "failed to apply mutations")
				return err
			}

			envs := make([]domain.MutationEnvelope, 0, len(fresh))
			for i := range fresh {
				if !results[i].Applied {
					ignoredCount++
					continue
				}
				applied++
				envs = append(envs, domain.MutationEnvelope{
					RoomID:   roomID,
					ActorID:  grant.PrincipalID,
					Revision: revision,
					Mutation: fresh[i],
				})
			}
			scheduleBroadcast(deps, envs)
		}
		metrics.SetCounts(len(muts), applied, ignoredCount, duplicates)

		err = c.JSON(http.StatusAccepted, postMutationsResponse{
			IdempotencyKeys: keys,
			Applied:         applied,
			Ignored:         ignoredCount,
			Duplicates:      duplicates,
		})
		return err
	}
}

func rollbackDedupe(deps *Deps, roomID string, muts []domain.Mutation) {
	if deps.Deduper == nil {
		return
	}
	for _, m := range muts {
		if rerr := deps.Deduper.Remove(bg, roomID, m.IdempotencyKey); rerr != nil {
			deps.Logger.Errorf("dedupe rollback failed, err: %v, key: %s, room: %s", rerr, m.IdempotencyKey, roomID)
		}
	}
}

// scheduleBroadcast hands committed mutations to the publish pool, falling
// back to an inline publish when the pool is saturated. Broadcast is
// best-effort; the committed board state stands either way.
func scheduleBroadcast(deps *Deps, envs []domain.MutationEnvelope) {
	if len(envs) == 0 || deps.Publisher == nil {
		return
	}
	if tryPublishJob(publishJob{envs: envs}) {
		return
	}

	if deps.Logger != nil {
		deps.Logger.Warn("publish buffer saturated; publishing inline")
	}
	timeout := publishTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	publishCtx, cancel := context.WithTimeout(bg, timeout)
	defer cancel()
	if perr := deps.Publisher.Publish(publishCtx, envs); perr != nil {
		deps.Logger.Errorf("inline broadcast publish failed: %v", perr)
	}
}
