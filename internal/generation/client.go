package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/francis150/tmpltr/internal/config"
	"github.com/francis150/tmpltr/internal/logger"
	"github.com/francis150/tmpltr/internal/metrics"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client 生成服务的任务客户端
// 每个连接同一时刻只承载一个任务，任务结束后连接即关闭
type Client struct {
	cfg      *config.GeneratorConfig
	reporter ProgressReporter

	mu     sync.Mutex
	active bool
}

// NewClient 创建 Client 实例
// reporter 为 nil 时进度静默丢弃
func NewClient(cfg *config.GeneratorConfig, reporter ProgressReporter) *Client {
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &Client{cfg: cfg, reporter: reporter}
}

// Run 提交任务并阻塞等待终态
// 成功返回全部提示词的生成产出；服务端报错返回 GenerationError，
// 连接/传输失败返回 ConnectionError。ctx 取消会关闭连接并立即返回
func (c *Client) Run(ctx context.Context, req *JobRequest) ([]PromptOutput, *SuccessSummary, error) {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return nil, nil, ErrJobActive
	}
	c.active = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.active = false
		c.mu.Unlock()
	}()

	if timeout := c.cfg.GetJobTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.GetConnectTimeout()}
	conn, _, err := dialer.DialContext(ctx, c.cfg.ServerURL, nil)
	if err != nil {
		metrics.GeneratorDialFailures.Inc()
		return nil, nil, &ConnectionError{Err: fmt.Errorf("连接 %s 失败: %w", c.cfg.ServerURL, err)}
	}
	defer conn.Close()

	// ctx 取消时主动关连接，解除 ReadJSON 阻塞
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if err := c.writeRequest(conn, req); err != nil {
		return nil, nil, &ConnectionError{Err: err}
	}

	return c.readUntilResolved(ctx, conn, req.JobID)
}

func (c *Client) writeRequest(conn *websocket.Conn, req *JobRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("序列化任务请求失败: %w", err)
	}
	if err := conn.WriteJSON(Envelope{Event: EventRequest, Data: payload}); err != nil {
		return fmt.Errorf("发送任务请求失败: %w", err)
	}
	return nil
}

// readUntilResolved 消费事件帧直到任务终态
// 事件携带的 job_id 与当前任务不符时直接丢弃，旧任务的残留帧不会串扰
func (c *Client) readUntilResolved(ctx context.Context, conn *websocket.Conn, jobID string) ([]PromptOutput, *SuccessSummary, error) {
	for {
		var frame Envelope
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return nil, nil, &ConnectionError{Err: fmt.Errorf("任务被取消: %w", ctx.Err())}
			}
			return nil, nil, &ConnectionError{Err: fmt.Errorf("读取事件失败: %w", err)}
		}

		switch frame.Event {
		case EventProgress:
			var ev ProgressEvent
			if err := json.Unmarshal(frame.Data, &ev); err != nil || ev.JobID != jobID {
				continue
			}
			c.reporter.Report(ctx, jobID, ev.Progress, ev.Message)

		case EventSuccess:
			var ev SuccessEvent
			if err := json.Unmarshal(frame.Data, &ev); err != nil {
				return nil, nil, &ConnectionError{Err: fmt.Errorf("解析成功事件失败: %w", err)}
			}
			if ev.JobID != jobID {
				continue
			}
			return ev.Results, &ev.Summary, nil

		case EventError:
			var ev ErrorEvent
			if err := json.Unmarshal(frame.Data, &ev); err != nil {
				return nil, nil, &ConnectionError{Err: fmt.Errorf("解析失败事件失败: %w", err)}
			}
			if ev.JobID != jobID {
				continue
			}
			return nil, nil, &GenerationError{Message: ev.Error.Message}

		default:
			logger.WithContext(ctx).Debug("忽略未知事件",
				zap.String("event", frame.Event),
				zap.String("jobId", jobID),
			)
		}
	}
}
