// Package ingress feeds the exchange engine from NATS JetStream and
// publishes terminal transaction events back out. One worker consumes the
// request subject sequentially, already-seen stream sequences are skipped
// so a replay after restart cannot execute a conversion twice.
package ingress

import (
	"encoding/json"
	"strings"
	"time"

	"cwex/pkg/account"
	"cwex/pkg/asset"
	"cwex/pkg/exchange"
	"cwex/pkg/model"
	"cwex/pkg/wallet"
	"cwex/pkg/xlog"
	"cwex/pkg/xnats"

	"github.com/nats-io/nats.go"
)

var logger = xlog.GetLogger()

const appName = "ingress"

// Worker consumes wallet requests and publishes events
type Worker struct {
	Engine   *exchange.Engine
	Accounts *account.Service // optional
	Deriver  *wallet.Deriver  // optional

	LatestMsgSeq uint64 // stream sequence of the latest handled message

	js nats.JetStreamContext
	ch chan *nats.Msg
}

type ackPayload struct {
	msg *nats.Msg
	seq uint64
}

// New returns an ingress Worker
func New(e *exchange.Engine, accounts *account.Service, deriver *wallet.Deriver) *Worker {
	return &Worker{
		Engine:   e,
		Accounts: accounts,
		Deriver:  deriver,
		ch:       make(chan *nats.Msg, 1024),
	}
}

// Run loads the resume position, subscribes and handles messages until the
// subscription closes
func (w *Worker) Run() (err error) {
	err = w.LoadLatestMsgSeq()
	if err != nil {
		return
	}

	err = w.SubNats()
	if err != nil {
		return
	}

	return w.HandleMsgs()
}

// LoadLatestMsgSeq reads the resume position from mysql
func (w *Worker) LoadLatestMsgSeq() (err error) {
	db := model.GetMySQL()
	if db == nil {
		return nil
	}

	var kv model.Lastkv
	err = db.Model(model.Lastkv{}).Where(model.Lastkv{
		App: appName,
		Key: model.LASTKV_K_NATS_SEQ,
	}).Limit(1).Find(&kv).Error
	if err != nil {
		logger.Errorf("LoadLatestMsgSeq failed with err:%s", err)
		return
	}
	w.LatestMsgSeq = uint64(kv.Val)

	logger.Infof("ingress resuming from msg seq:%d", w.LatestMsgSeq)
	return
}

// HandleMsgs processes requests sequentially in a single goroutine and acks
// in batches, only the highest sequence of each batch is acked
func (w *Worker) HandleMsgs() (err error) {
	chAck := make(chan ackPayload, 1024)

	go func() {
		var latest ackPayload
		for {
			mp := <-chAck
			if mp.seq > latest.seq {
				latest = mp
			}
			// drain whatever queued up behind it
			l := len(chAck)
			for i := 0; i < l; i++ {
				mp = <-chAck
				if mp.seq > latest.seq {
					latest = mp
				}
			}
			aerr := latest.msg.Ack()
			if aerr != nil {
				logger.Errorf("msg(%v) ack failed with err:%s", latest.seq, aerr)
				continue
			}
			logger.Debugf("msg(%v) ack done", latest.seq)
		}
	}()

	for {
		msg, ok := <-w.ch
		if !ok {
			return
		}

		switch msg.Subject {
		case xnats.SubjectExchange:
			err = w.HandleExchangeReq(msg, chAck)
		case xnats.SubjectRegister:
			err = w.HandleRegisterReq(msg, chAck)
		case xnats.SubjectAddress:
			err = w.HandleAddressReq(msg, chAck)
		default:
			logger.Warningf("ingress got unexpected subject:%s", msg.Subject)
		}
		if err != nil {
			return
		}
	}
}

// HandleExchangeReq executes one conversion request. Malformed or invalid
// requests are acked and dropped, the engine's own failures become failed
// transactions with their event published, so nothing is redelivered for a
// business error.
func (w *Worker) HandleExchangeReq(msg *nats.Msg, chAck chan ackPayload) (err error) {
	md, err := msg.Metadata()
	if err != nil {
		logger.Errorf("HandleExchangeReq metadata failed with err:%s", err)
		return nil
	}
	seq := md.Sequence.Stream

	defer func() {
		if err == nil {
			chAck <- ackPayload{msg: msg, seq: seq}
		}
	}()

	if seq <= w.LatestMsgSeq {
		logger.Warningf("skip replayed msg seq:%d <= latest:%d", seq, w.LatestMsgSeq)
		return nil
	}

	var req xnats.ExchangeReq
	err = json.Unmarshal(msg.Data, &req)
	if err != nil {
		logger.Errorf("HandleExchangeReq unmarshal failed with data:%s, err:%s", msg.Data, err)
		return nil
	}

	logger.Tracef("HandleExchangeReq owner:%d, %s->%s, amount:%s, seq:%d",
		req.Owner, req.FromAsset, req.ToAsset, req.Amount, seq)

	from, ferr := asset.Parse(strings.ToUpper(req.FromAsset))
	to, terr := asset.Parse(strings.ToUpper(req.ToAsset))
	if ferr != nil || terr != nil {
		logger.Warningf("HandleExchangeReq unsupported asset pair %s->%s, requestID:%s",
			req.FromAsset, req.ToAsset, req.RequestID)
		w.publishTxError(req, "UnsupportedAsset")
		return nil
	}
	units, uerr := asset.ParseAmount(from, req.Amount)
	if uerr != nil {
		logger.Warningf("HandleExchangeReq bad amount:%s, requestID:%s, err:%s",
			req.Amount, req.RequestID, uerr)
		w.publishTxError(req, "InvalidAmount")
		return nil
	}

	tx, xerr := w.Engine.Execute(req.Owner, from, to, units, req.RequestID)
	if xerr != nil {
		// failed conversions are terminal records, not redeliveries
		logger.Warningf("HandleExchangeReq execute failed with requestID:%s, err:%s", req.RequestID, xerr)
		if tx == nil {
			// rejected before a transaction was appended, no event went
			// out on the engine path
			w.publishTxError(req, exchange.FailReason(xerr))
		}
	}

	w.LatestMsgSeq = seq
	w.saveMsgSeq(seq)

	return nil
}

// publishTxError reports a request that was rejected before a transaction
// existed, so the caller still learns the outcome by request id
func (w *Worker) publishTxError(req xnats.ExchangeReq, reason string) {
	now := time.Now()
	w.publishEvent(xnats.SubjectTxEvents, xnats.TxEvent{
		RequestID: req.RequestID,
		Owner:     req.Owner,
		FromAsset: req.FromAsset,
		ToAsset:   req.ToAsset,
		TxStatus:  model.TxStatusFailed,
		Reason:    reason,
		Time:      &now,
	})
}

// HandleRegisterReq creates a user with seed and opening balance, the
// outcome goes out on the account events subject
func (w *Worker) HandleRegisterReq(msg *nats.Msg, chAck chan ackPayload) (err error) {
	md, err := msg.Metadata()
	if err != nil {
		logger.Errorf("HandleRegisterReq metadata failed with err:%s", err)
		return nil
	}
	seq := md.Sequence.Stream

	defer func() {
		if err == nil {
			chAck <- ackPayload{msg: msg, seq: seq}
		}
	}()

	if seq <= w.LatestMsgSeq {
		logger.Warningf("skip replayed msg seq:%d <= latest:%d", seq, w.LatestMsgSeq)
		return nil
	}
	if w.Accounts == nil {
		logger.Warning("HandleRegisterReq dropped, no account service attached")
		return nil
	}

	var req xnats.RegisterReq
	err = json.Unmarshal(msg.Data, &req)
	if err != nil {
		logger.Errorf("HandleRegisterReq unmarshal failed with data:%s, err:%s", msg.Data, err)
		return nil
	}

	ev := xnats.AccountEvent{
		RequestID: req.RequestID,
		Username:  req.Username,
	}
	u, rerr := w.Accounts.Register(req.Username, req.Email, req.Password)
	if rerr != nil {
		ev.Error = rerr.Error()
	} else {
		ev.UserID = u.ID
	}
	w.publishEvent(xnats.SubjectAccEvents, ev)

	w.LatestMsgSeq = seq
	w.saveMsgSeq(seq)

	return nil
}

// HandleAddressReq answers with the deposit address of (owner, asset)
func (w *Worker) HandleAddressReq(msg *nats.Msg, chAck chan ackPayload) (err error) {
	md, err := msg.Metadata()
	if err != nil {
		logger.Errorf("HandleAddressReq metadata failed with err:%s", err)
		return nil
	}
	seq := md.Sequence.Stream

	defer func() {
		if err == nil {
			chAck <- ackPayload{msg: msg, seq: seq}
		}
	}()

	if seq <= w.LatestMsgSeq {
		logger.Warningf("skip replayed msg seq:%d <= latest:%d", seq, w.LatestMsgSeq)
		return nil
	}
	if w.Deriver == nil {
		logger.Warning("HandleAddressReq dropped, no deriver attached")
		return nil
	}

	var req xnats.AddressReq
	err = json.Unmarshal(msg.Data, &req)
	if err != nil {
		logger.Errorf("HandleAddressReq unmarshal failed with data:%s, err:%s", msg.Data, err)
		return nil
	}

	ev := xnats.AddressEvent{
		RequestID: req.RequestID,
		Owner:     req.Owner,
		Asset:     req.Asset,
	}
	a, aerr := asset.Parse(strings.ToUpper(req.Asset))
	if aerr != nil {
		ev.Error = aerr.Error()
	} else {
		addr, derr := w.Deriver.AddressFor(req.Owner, a)
		if derr != nil {
			ev.Error = derr.Error()
		} else {
			ev.Address = addr
		}
	}
	w.publishEvent(xnats.SubjectAddEvents, ev)

	w.LatestMsgSeq = seq
	w.saveMsgSeq(seq)

	return nil
}

func (w *Worker) saveMsgSeq(seq uint64) {
	db := model.GetMySQLSilence()
	if db == nil {
		return
	}

	err := model.UpsertLastkv(db, appName, model.LASTKV_K_NATS_SEQ, int64(seq))
	if err != nil {
		logger.Errorf("saveMsgSeq failed with seq:%d, err:%s", seq, err)
	}
}
