package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/minischools/academy-backend/internal/data/repos"
	types "github.com/minischools/academy-backend/internal/domain"
	"github.com/minischools/academy-backend/internal/platform/ctxutil"
	"github.com/minischools/academy-backend/internal/platform/dbctx"
	"github.com/minischools/academy-backend/internal/services"
)

/*
Context is the execution handle for a single claimed job run. Pipelines
report progress and terminate through it and never write job_run directly.
Every write is guarded so a canceled run is never overwritten.
*/
type Context struct {
	Ctx     context.Context
	DB      *gorm.DB
	Job     *types.JobRun
	Repo    repos.JobRunRepo
	Notify  services.JobNotifier
	payload map[string]any
}

func NewContext(ctx context.Context, db *gorm.DB, job *types.JobRun, repo repos.JobRunRepo, notify services.JobNotifier) *Context {
	c := &Context{
		Ctx:    ctx,
		DB:     db,
		Job:    job,
		Repo:   repo,
		Notify: notify,
	}
	_ = c.decodePayload()
	c.applyTraceData()
	return c
}

func (c *Context) decodePayload() error {
	c.payload = map[string]any{}
	if c.Job == nil || len(c.Job.Payload) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		return err
	}
	if m != nil {
		c.payload = m
	}
	return nil
}

func (c *Context) applyTraceData() {
	if c.Ctx == nil {
		c.Ctx = context.Background()
	}
	traceID := c.PayloadString("trace_id")
	reqID := c.PayloadString("request_id")
	if traceID == "" && reqID == "" {
		return
	}
	c.Ctx = ctxutil.WithTraceData(c.Ctx, &ctxutil.TraceData{TraceID: traceID, RequestID: reqID})
}

// Payload never returns nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

func (c *Context) PayloadString(key string) string {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.PayloadString(key))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// DecodePayload unmarshals the raw payload into out.
func (c *Context) DecodePayload(out any) error {
	if c.Job == nil || len(c.Job.Payload) == 0 {
		return fmt.Errorf("empty payload")
	}
	return json.Unmarshal(c.Job.Payload, out)
}

// DecodeResult unmarshals the stored result into out. It reports false when
// the job has no result yet.
func (c *Context) DecodeResult(out any) (bool, error) {
	if c.Job == nil || len(c.Job.Result) == 0 {
		return false, nil
	}
	raw := strings.TrimSpace(string(c.Job.Result))
	if raw == "" || raw == "{}" || raw == "null" {
		return false, nil
	}
	if err := json.Unmarshal(c.Job.Result, out); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Context) dbc() dbctx.Context {
	return dbctx.Context{Ctx: ctxutil.Default(c.Ctx)}
}

// Canceled reports whether the run was canceled by its creator. It reads the
// status from storage so a cancel issued by another instance is observed.
func (c *Context) Canceled() bool {
	if c == nil || c.Job == nil {
		return false
	}
	if c.Job.Status == types.JobStatusCanceled {
		return true
	}
	if c.Repo == nil {
		return false
	}
	status, err := c.Repo.GetStatus(c.dbc(), c.Job.ID)
	if err != nil {
		return false
	}
	if status == types.JobStatusCanceled || status == "" {
		c.Job.Status = types.JobStatusCanceled
		return true
	}
	return false
}

// SaveResult persists an intermediate result snapshot. It returns false when
// the run was canceled in the meantime.
func (c *Context) SaveResult(stage string, pct int, msg string, result any) bool {
	if c == nil || c.Job == nil {
		return false
	}
	res := toJSON(result)
	now := time.Now()
	if c.Repo != nil {
		ok, err := c.Repo.UpdateFieldsUnlessStatus(c.dbc(), c.Job.ID, []string{types.JobStatusCanceled}, map[string]interface{}{
			"stage":        stage,
			"progress":     pct,
			"message":      msg,
			"result":       res,
			"heartbeat_at": now,
		})
		if err != nil || !ok {
			return false
		}
	}
	c.Job.Stage = stage
	c.Job.Progress = pct
	c.Job.Message = msg
	c.Job.Result = res
	c.Job.HeartbeatAt = &now
	c.Job.UpdatedAt = now
	return true
}

// Progress persists stage, progress and message, then notifies.
func (c *Context) Progress(stage string, pct int, msg string) {
	if c == nil || c.Job == nil {
		return
	}
	now := time.Now()
	if c.Repo != nil {
		ok, _ := c.Repo.UpdateFieldsUnlessStatus(c.dbc(), c.Job.ID, []string{types.JobStatusCanceled}, map[string]interface{}{
			"stage":        stage,
			"progress":     pct,
			"message":      msg,
			"heartbeat_at": now,
		})
		if !ok {
			return
		}
	}
	c.Job.Stage = stage
	c.Job.Progress = pct
	c.Job.Message = msg
	c.Job.HeartbeatAt = &now
	c.Job.UpdatedAt = now
	if c.Notify != nil {
		c.Notify.JobProgress(c.Job.CreatorID, c.Job, stage, pct, msg)
	}
}

// Fail marks the run failed so the worker may retry it.
func (c *Context) Fail(stage string, err error) {
	if c == nil || c.Job == nil {
		return
	}
	now := time.Now()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if c.Repo != nil {
		ok, _ := c.Repo.UpdateFieldsUnlessStatus(c.dbc(), c.Job.ID, []string{types.JobStatusCanceled}, map[string]interface{}{
			"status":        types.JobStatusFailed,
			"stage":         stage,
			"message":       "",
			"error":         msg,
			"last_error_at": now,
			"locked_at":     nil,
		})
		if !ok {
			return
		}
	}
	c.Job.Status = types.JobStatusFailed
	c.Job.Stage = stage
	c.Job.Message = ""
	c.Job.Error = msg
	c.Job.LastErrorAt = &now
	c.Job.LockedAt = nil
	c.Job.UpdatedAt = now
	if c.Notify != nil {
		c.Notify.JobFailed(c.Job.CreatorID, c.Job, stage, msg)
	}
}

// Finish moves the run to a terminal status with its final result.
func (c *Context) Finish(status, finalStage, msg string, result any) {
	if c == nil || c.Job == nil {
		return
	}
	now := time.Now()
	res := toJSON(result)
	if c.Repo != nil {
		ok, _ := c.Repo.UpdateFieldsUnlessStatus(c.dbc(), c.Job.ID, []string{types.JobStatusCanceled}, map[string]interface{}{
			"status":       status,
			"stage":        finalStage,
			"progress":     100,
			"message":      msg,
			"error":        "",
			"result":       res,
			"locked_at":    nil,
			"heartbeat_at": now,
		})
		if !ok {
			return
		}
	}
	c.Job.Status = status
	c.Job.Stage = finalStage
	c.Job.Progress = 100
	c.Job.Message = msg
	c.Job.Error = ""
	c.Job.Result = res
	c.Job.LockedAt = nil
	c.Job.HeartbeatAt = &now
	c.Job.UpdatedAt = now
	if c.Notify != nil {
		c.Notify.JobDone(c.Job.CreatorID, c.Job)
	}
}

func (c *Context) Succeed(finalStage string, result any) {
	c.Finish(types.JobStatusSucceeded, finalStage, "", result)
}

// MarkCanceled records the partial result of a canceled run and notifies.
// The status is already canceled in storage.
func (c *Context) MarkCanceled(result any) {
	if c == nil || c.Job == nil {
		return
	}
	now := time.Now()
	res := toJSON(result)
	if c.Repo != nil {
		_, _ = c.Repo.UpdateFieldsIfStatus(c.dbc(), c.Job.ID, []string{types.JobStatusCanceled}, map[string]interface{}{
			"stage":     "canceled",
			"result":    res,
			"locked_at": nil,
		})
	}
	c.Job.Status = types.JobStatusCanceled
	c.Job.Stage = "canceled"
	c.Job.Result = res
	c.Job.LockedAt = nil
	c.Job.UpdatedAt = now
	if c.Notify != nil {
		c.Notify.JobCanceled(c.Job.CreatorID, c.Job)
	}
}

func toJSON(v any) datatypes.JSON {
	if v == nil {
		return datatypes.JSON([]byte(`{}`))
	}
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte(`{}`))
	}
	return datatypes.JSON(b)
}
