package bridge

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/hivemesh/hive/src/common"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

// maxDecisionSize bounds the policy service response body.
const maxDecisionSize = 8 * 1024

// Decision is the fee-policy verdict for a committed action.
type Decision struct {
	Approve bool
	FeePPM  uint32
	Reason  string
}

// FeePolicy is consulted after an intent commits, to parametrise the
// resulting routing action. It is never on the intent commit path itself:
// commit gating is local and pure, the bridge only shapes execution.
type FeePolicy interface {
	Evaluate(ctx context.Context, action, target string) (*Decision, error)
}

// query is the request body sent to the policy endpoint.
type query struct {
	Action string
	Target string
}

// HTTPFeePolicy calls an operator-run HTTP endpoint, behind a circuit
// breaker.
type HTTPFeePolicy struct {
	url     string
	client  *http.Client
	breaker *Breaker
	logger  *logrus.Entry
}

// NewHTTPFeePolicy creates an HTTPFeePolicy for the given endpoint URL.
func NewHTTPFeePolicy(
	url string,
	timeout time.Duration,
	breaker *Breaker,
	logger *logrus.Entry,
) *HTTPFeePolicy {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &HTTPFeePolicy{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
		logger:  logger,
	}
}

// Breaker exposes the underlying breaker for stats reporting.
func (p *HTTPFeePolicy) Breaker() *Breaker {
	return p.breaker
}

// Evaluate implements the FeePolicy interface.
func (p *HTTPFeePolicy) Evaluate(ctx context.Context, action, target string) (*Decision, error) {
	now := time.Now()
	if !p.breaker.Allow(now) {
		return nil, common.NewCoordErr("bridge", common.CollaboratorUnavailable, "breaker open")
	}

	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, new(codec.JsonHandle))
	if err := enc.Encode(&query{Action: action, Target: target}); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, p.url, &buf)
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.breaker.Failure(time.Now())
		return nil, common.NewCoordErr("bridge", common.CollaboratorUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.breaker.Failure(time.Now())
		return nil, common.NewCoordErr("bridge", common.CollaboratorUnavailable, resp.Status)
	}

	body, err := ioutil.ReadAll(&io.LimitedReader{R: resp.Body, N: maxDecisionSize})
	if err != nil {
		p.breaker.Failure(time.Now())
		return nil, common.NewCoordErr("bridge", common.CollaboratorUnavailable, err.Error())
	}

	d := &Decision{}
	dec := codec.NewDecoder(bytes.NewBuffer(body), new(codec.JsonHandle))
	if err := dec.Decode(d); err != nil {
		p.breaker.Failure(time.Now())
		return nil, common.NewCoordErr("bridge", common.MalformedFrame, "bad decision structure")
	}

	p.breaker.Success()
	return d, nil
}

// StaticFeePolicy approves everything with a fixed fee. It is the default
// when no policy endpoint is configured, and the workhorse of tests.
type StaticFeePolicy struct {
	FeePPM uint32
}

// Evaluate implements the FeePolicy interface.
func (p *StaticFeePolicy) Evaluate(ctx context.Context, action, target string) (*Decision, error) {
	return &Decision{Approve: true, FeePPM: p.FeePPM}, nil
}
