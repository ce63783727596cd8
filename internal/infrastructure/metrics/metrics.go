package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fanlink_messages_sent_total",
		Help: "Messages appended to conversations, by kind.",
	}, []string{"kind"})

	MessageUnlocks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fanlink_message_unlocks_total",
		Help: "Unlock attempts by outcome: granted, replayed, insufficient_funds, pending.",
	}, []string{"outcome"})

	UnlockRepairsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fanlink_unlock_repairs_pending",
		Help: "Charged-but-not-granted unlocks awaiting reconciliation.",
	})

	LedgerAmount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fanlink_ledger_amount_minor_units_total",
		Help: "Total value moved through the ledger, by entry type and reason class.",
	}, []string{"type", "reason"})

	StreamChatLines = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fanlink_stream_chat_lines_total",
		Help: "Live stream chat lines relayed, by kind.",
	}, []string{"kind"})

	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fanlink_websocket_connections",
		Help: "Currently open websocket connections.",
	})
)
