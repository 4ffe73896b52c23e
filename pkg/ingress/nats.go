package ingress

import (
	"encoding/json"

	"cwex/pkg/model"
	"cwex/pkg/xetcd"
	"cwex/pkg/xnats"

	"github.com/nats-io/nats.go"
)

// GetNats returns the JetStream context, connecting on first use. The NATS
// url comes from the etcd registry.
func (w *Worker) GetNats() (js nats.JetStreamContext, err error) {
	if w.js != nil {
		return w.js, nil
	}

	natsUrl, err := xetcd.Get(xetcd.KeyNatsService())
	if err != nil {
		return
	}

	nc, err := nats.Connect(natsUrl)
	if err != nil {
		return
	}

	js, err = nc.JetStream(nats.PublishAsyncMaxPending(256))
	if err != nil {
		return
	}
	w.js = js

	return
}

// SubNats subscribes to exchange requests, resuming after the latest
// handled stream sequence
func (w *Worker) SubNats() (err error) {
	js, err := w.GetNats()
	if err != nil {
		return
	}

	_, err = js.ChanSubscribe(xnats.SubjectRequests, w.ch,
		nats.StartSequence(w.LatestMsgSeq+1), nats.AckAll())

	return
}

// publishEvent marshals and publishes one event, errors are logged only
func (w *Worker) publishEvent(subject string, ev interface{}) {
	js, err := w.GetNats()
	if err != nil {
		logger.Errorf("publishEvent %s failed with err:%s", subject, err)
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		logger.Errorf("publishEvent %s marshal failed with err:%s", subject, err)
		return
	}
	_, err = js.Publish(subject, data)
	if err != nil {
		logger.Errorf("publishEvent %s failed with err:%s", subject, err)
	}
}

// SendExchangeReq publishes one conversion request, used by the API edge
// and the benchmark tool
func (w *Worker) SendExchangeReq(req xnats.ExchangeReq) (err error) {
	js, err := w.GetNats()
	if err != nil {
		return
	}

	data, err := json.Marshal(req)
	if err != nil {
		return
	}
	_, err = js.Publish(xnats.SubjectExchange, data)

	return
}

// txEvent maps a terminal transaction onto its wire event
func txEvent(tx *model.ExchangeTx) xnats.TxEvent {
	return xnats.TxEvent{
		TxID:      tx.ID,
		RequestID: tx.RequestID,
		Owner:     tx.Owner,
		FromAsset: tx.FromAsset,
		ToAsset:   tx.ToAsset,
		FromUnits: tx.FromUnits,
		ToUnits:   tx.ToUnits,
		Rate:      tx.Rate.String(),
		TxStatus:  tx.TxStatus,
		Reason:    tx.Reason,
		Time:      tx.CompletedAt,
	}
}

// PublishTx publishes a terminal transaction event. Satisfies
// exchange.Publisher.
func (w *Worker) PublishTx(tx *model.ExchangeTx) (err error) {
	js, err := w.GetNats()
	if err != nil {
		return
	}

	data, err := json.Marshal(txEvent(tx))
	if err != nil {
		return
	}
	_, err = js.Publish(xnats.SubjectTxEvents, data)

	return
}

// EnsureStream creates the WALLET stream when it does not exist yet
func (w *Worker) EnsureStream() (err error) {
	js, err := w.GetNats()
	if err != nil {
		return
	}

	_, err = js.StreamInfo(xnats.StreamName)
	if err == nil {
		return nil
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     xnats.StreamName,
		Subjects: []string{xnats.StreamName + ".>"},
	})

	return
}
