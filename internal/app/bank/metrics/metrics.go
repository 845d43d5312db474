// Package metrics 提供 Ledger 引擎的 Prometheus 計數器。
// 監控端點由 cmd/server 的 monitoring listener 曝露。
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ledger 帳務核心的操作計數
type Ledger struct {
	transactions *prometheus.CounterVec
	balanceReads prometheus.Counter
	historyReads prometheus.Counter
}

// NewLedger 建立並註冊計數器
// 測試時可傳入 prometheus.NewRegistry() 避免全域註冊衝突
func NewLedger(reg prometheus.Registerer) *Ledger {
	m := &Ledger{
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bank_ledger",
				Name:      "transactions_total",
				Help:      "Posted transactions by type and result.",
			},
			[]string{"type", "result"},
		),
		balanceReads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bank_ledger",
			Name:      "balance_reads_total",
			Help:      "Balance lookups served.",
		}),
		historyReads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bank_ledger",
			Name:      "history_reads_total",
			Help:      "Transaction history lookups served.",
		}),
	}
	reg.MustRegister(m.transactions, m.balanceReads, m.historyReads)
	return m
}

// ObserveTransaction 記錄一次交易嘗試的結果
func (m *Ledger) ObserveTransaction(tranType string, err error) {
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	m.transactions.WithLabelValues(tranType, result).Inc()
}

// ObserveBalanceRead 記錄一次餘額查詢
func (m *Ledger) ObserveBalanceRead() {
	m.balanceReads.Inc()
}

// ObserveHistoryRead 記錄一次交易歷史查詢
func (m *Ledger) ObserveHistoryRead() {
	m.historyReads.Inc()
}
