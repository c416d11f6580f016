package cache

import (
	"context"
	"fmt"

	"go-myclub-groups/internal/logx"
	"go-myclub-groups/internal/metrics"
)

// Outcome 为一次清理的结果分类。
type Outcome int

const (
	// Purged 已调用清理原语（原语本身不一定能报告成功）
	Purged Outcome = iota
	// NoLayer 未探测到缓存层
	NoLayer
	// Unavailable 探测到缓存层但清理原语不可调用
	Unavailable
	// Failed 调用过程中出错或 panic
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Purged:
		return "purged"
	case NoLayer:
		return "no_layer"
	case Unavailable:
		return "unavailable"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result 为清理结果；失败不会以 error 形式向上传播。
type Result struct {
	Layer   LayerID
	Outcome Outcome
	Err     error
}

// OK 表示已调用清理原语。
func (r Result) OK() bool { return r.Outcome == Purged }

// Purge 对指定层调用清理原语。宿主返回的错误与 panic 都在此处收敛为 Failed。
func Purge(ctx context.Context, h Host, layer LayerID, contentID int64) (res Result) {
	res.Layer = layer
	defer func() {
		if p := recover(); p != nil {
			res.Outcome = Failed
			res.Err = fmt.Errorf("purge %s panic: %v", layer, p)
		}
		if res.Err != nil {
			logx.Warnf("清理缓存失败：层=%s 内容=%d 错误=%v", layer, contentID, res.Err)
		}
		metrics.RecordPurge(string(layer), res.Outcome.String())
	}()

	if layer == LayerNone {
		res.Outcome = NoLayer
		return res
	}
	l, ok := lookup(layer)
	if !ok {
		res.Outcome = Unavailable
		return res
	}
	invoked, err := l.Purge(ctx, h, contentID)
	switch {
	case err != nil:
		res.Outcome = Failed
		res.Err = err
	case !invoked:
		res.Outcome = Unavailable
	default:
		res.Outcome = Purged
	}
	return res
}

// Invalidator 绑定宿主环境，供内容保存流程调用。
type Invalidator struct {
	host Host
}

func NewInvalidator(h Host) *Invalidator {
	return &Invalidator{host: h}
}

// Detect 返回当前生效的缓存层。
func (i *Invalidator) Detect() (id LayerID) {
	defer func() {
		if p := recover(); p != nil {
			logx.Warnf("探测缓存层失败：%v", p)
			id = LayerNone
		}
	}()
	return Detect(i.host)
}

// Invalidate 探测并清理 contentID 对应的缓存。
func (i *Invalidator) Invalidate(ctx context.Context, contentID int64) Result {
	layer := i.Detect()
	res := Purge(ctx, i.host, layer, contentID)
	if res.OK() {
		logx.Debugf("已清理缓存：层=%s 内容=%d", layer, contentID)
	}
	return res
}
