package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	amessages "github.com/airenas/async-api/pkg/messages"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/vgarvardt/gue/v5"

	"github.com/airenas/clipcheck/internal/pkg/api"
	"github.com/airenas/clipcheck/internal/pkg/messages"
	"github.com/airenas/clipcheck/internal/pkg/persistence"
	"github.com/airenas/clipcheck/internal/pkg/pipeline"
	"github.com/airenas/clipcheck/internal/pkg/status"
	"github.com/airenas/clipcheck/internal/pkg/utils"
	"github.com/airenas/clipcheck/internal/pkg/utils/handler"
)

// MsgSender provides send msg functionality
type MsgSender interface {
	SendMessage(ctx context.Context, msg amessages.Message, queue, jobType string) error
}

// SessionStore provides session persistence
type SessionStore interface {
	Get(ctx context.Context, id string) (*persistence.Session, error)
	MarkFailed(ctx context.Context, id string, errData *persistence.ErrorData) error
}

// Filer retrieves files
type Filer interface {
	LoadFile(ctx context.Context, fileName string) (io.ReadSeekCloser, error)
}

// Runner executes the verification pipeline for one session
type Runner interface {
	Run(ctx context.Context, sessionID, audioPath string, meta *api.Metadata) error
}

// ServiceData keeps data required for service work
type ServiceData struct {
	GueClient   *gue.Client
	WorkerCount int
	MsgSender   MsgSender
	Sessions    SessionStore
	Filer       Filer
	Runner      Runner
	Testing     bool
}

// StartWorkerService starts the event queue listener service to listen for verification jobs
// returns channel closed when all pool workers finish
func StartWorkerService(ctx context.Context, data *ServiceData) (chan struct{}, error) {
	if err := validate(data); err != nil {
		return nil, err
	}
	goapp.Log.Info().Int("workers", data.WorkerCount).Msg("Starting listen for messages")
	if data.Testing {
		goapp.Log.Warn().Msg("SERVICE IN TEST MODE")
	}

	wm := gue.WorkMap{
		messages.JobVerify: handler.Create(data, handleVerify, handler.DefaultOpts[messages.VerifyMessage]().
			WithFailure(makeFailureHandler(data)).WithTimeout(time.Minute*30).
			WithBackoff(handler.DefaultBackoffOrTest(data.Testing))),
		messages.JobFail: handler.Create(data, handleFailure, handler.DefaultOpts[messages.FailureMessage]().
			WithBackoff(handler.DefaultBackoffOrTest(data.Testing))),
	}

	pool, err := gue.NewWorkerPool(
		data.GueClient, wm, data.WorkerCount,
		gue.WithPoolQueue(messages.Work),
		gue.WithPoolLogger(utils.NewGueLoggerAdapter()),
		gue.WithPoolPollInterval(500*time.Millisecond),
		gue.WithPoolPollStrategy(gue.RunAtPollStrategy),
		gue.WithPoolID("clipcheck-worker"),
	)
	if err != nil {
		return nil, fmt.Errorf("could not build gue workers pool: %w", err)
	}
	res := make(chan struct{}, 1)
	go func() {
		goapp.Log.Info().Msg("Starting workers")
		if err := pool.Run(ctx); err != nil {
			goapp.Log.Error().Err(err).Msg("pool error")
		}
		goapp.Log.Info().Msg("Pool workers finished")
		res <- struct{}{}
	}()
	return res, nil
}

func handleVerify(ctx context.Context, m *messages.VerifyMessage, data *ServiceData) error {
	goapp.Log.Info().Str("ID", m.ID).Msg("handling verify")
	err := data.MsgSender.SendMessage(ctx, &amessages.InformMessage{
		QueueMessage: *amessages.NewQueueMessageFromM(&m.QueueMessage),
		Type:         amessages.InformTypeStarted, At: time.Now()}, messages.Inform, messages.Inform)
	if err != nil {
		return fmt.Errorf("can't send msg: %w", err)
	}
	goapp.Log.Info().Str("ID", m.ID).Msg("load session")
	sess, err := data.Sessions.Get(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("can't load session: %w", err)
	}
	if sess == nil {
		goapp.Log.Warn().Str("ID", m.ID).Msg("no session - skip")
		return nil
	}
	if status.From(sess.Status) != status.Processing {
		goapp.Log.Warn().Str("ID", m.ID).Str("status", sess.Status).Msg("session already terminal - skip")
		return nil
	}
	if sess.InitialData == nil || sess.InitialData.BlobName == "" {
		return fmt.Errorf("no audio file for '%s'", m.ID)
	}
	goapp.Log.Info().Str("ID", m.ID).Str("file", sess.InitialData.BlobName).Msg("load file")
	file, err := data.Filer.LoadFile(ctx, utils.MakeFileName(m.ID, sess.InitialData.BlobName))
	if err != nil {
		return fmt.Errorf("can't load file: %w", err)
	}
	defer func() { _ = file.Close() }()
	path, cFunc, err := utils.SaveTmpFile(file, filepath.Ext(sess.InitialData.BlobName))
	if err != nil {
		return fmt.Errorf("can't stage file: %w", err)
	}
	defer cFunc()

	meta := &api.Metadata{Title: sess.InitialData.Title, Description: sess.InitialData.Description}
	if err := data.Runner.Run(ctx, m.ID, path, meta); err != nil {
		if errors.Is(err, pipeline.ErrPersistenceFailed) {
			return err
		}
		// terminal domain outcome, the session record is already marked failed
		goapp.Log.Warn().Err(err).Str("ID", m.ID).Msg("verification not passed")
		return sendInformFinish(ctx, m, data, amessages.InformTypeFailed)
	}
	goapp.Log.Info().Str("ID", m.ID).Msg("verification completed")
	return sendInformFinish(ctx, m, data, amessages.InformTypeFinished)
}

func sendInformFinish(ctx context.Context, m *messages.VerifyMessage, data *ServiceData, informType string) error {
	err := data.MsgSender.SendMessage(ctx, &amessages.InformMessage{
		QueueMessage: *amessages.NewQueueMessageFromM(&m.QueueMessage),
		Type:         informType, At: time.Now()}, messages.Inform, messages.Inform)
	if err != nil {
		return fmt.Errorf("can't send msg: %w", err)
	}
	return nil
}

func handleFailure(ctx context.Context, m *messages.FailureMessage, data *ServiceData) error {
	goapp.Log.Info().Str("ID", m.ID).Msg("handling failure")
	sess, err := data.Sessions.Get(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("can't load session: %w", err)
	}
	if sess == nil {
		goapp.Log.Warn().Str("ID", m.ID).Msg("no session - skip")
		return nil
	}
	if status.From(sess.Status) != status.Processing {
		goapp.Log.Info().Str("ID", m.ID).Str("status", sess.Status).Msg("already terminal - ignore")
		return nil
	}
	errMsg := m.Error
	if errMsg == "" {
		errMsg = "verification failed"
	}
	err = data.Sessions.MarkFailed(ctx, m.ID, &persistence.ErrorData{
		Errors: []string{errMsg}, StageFailed: sess.Stage})
	if err != nil {
		return fmt.Errorf("can't mark session failed: %w", err)
	}
	goapp.Log.Info().Str("ID", m.ID).Msg("session marked failed")
	return nil
}

func makeFailureHandler(data *ServiceData) func(context.Context, *messages.VerifyMessage, error, *gue.Job) (bool, time.Duration, error) {
	return func(ctx context.Context, m *messages.VerifyMessage, err error, j *gue.Job) (bool, time.Duration, error) {
		if j.ErrorCount > 3 {
			goapp.Log.Warn().Str("ID", m.ID).Int32("errCount", j.ErrorCount).Msg("retries exhausted")
			errS := data.MsgSender.SendMessage(ctx, &messages.FailureMessage{
				QueueMessage: amessages.QueueMessage{ID: m.ID}, Error: err.Error()},
				messages.Work, messages.JobFail)
			return false, 0, errS
		}
		return true, 0, nil
	}
}

func validate(data *ServiceData) error {
	if data.GueClient == nil {
		return fmt.Errorf("no gue client")
	}
	if data.WorkerCount < 1 {
		return fmt.Errorf("no worker count provided")
	}
	if data.MsgSender == nil {
		return fmt.Errorf("no msg sender")
	}
	if data.Sessions == nil {
		return fmt.Errorf("no sessions store")
	}
	if data.Filer == nil {
		return fmt.Errorf("no Filer")
	}
	if data.Runner == nil {
		return fmt.Errorf("no Runner")
	}
	return nil
}
