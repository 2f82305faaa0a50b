package events

import (
	"log"
	"sync"
	"time"

	"bridge-backend/internal/clients"
	"bridge-backend/internal/config"

	"github.com/shopspring/decimal"
)

// NATS subjects for bridge events
const (
	SubjectDepositDetected     = "bridge.deposit.detected"
	SubjectDepositSettled      = "bridge.deposit.settled"
	SubjectWithdrawalCompleted = "bridge.withdrawal.completed"
	SubjectWithdrawalFailed    = "bridge.withdrawal.failed"
	SubjectNetworkStatus       = "bridge.network.status"
)

var (
	natsClient *clients.NATSClient
	natsOnce   sync.Once
)

// DepositEvent is published when a deposit is detected or settled
type DepositEvent struct {
	DepositID     string `json:"depositId"`
	UserID        string `json:"userId"`
	Network       string `json:"network"`
	TxHash        string `json:"txHash"`
	TokenSymbol   string `json:"tokenSymbol"`
	Amount        string `json:"amount"`
	WrappedSymbol string `json:"wrappedSymbol,omitempty"`
	WrappedAmount string `json:"wrappedAmount,omitempty"`
	Timestamp     int64  `json:"timestamp"`
}

// WithdrawalEvent is published on withdrawal completion or failure
type WithdrawalEvent struct {
	WithdrawalID string `json:"withdrawalId"`
	UserID       string `json:"userId"`
	Network      string `json:"network"`
	ToAddress    string `json:"toAddress"`
	TokenSymbol  string `json:"tokenSymbol"`
	Amount       string `json:"amount"`
	TxHash       string `json:"txHash,omitempty"`
	Error        string `json:"error,omitempty"`
	Timestamp    int64  `json:"timestamp"`
}

// NetworkStatusEvent is published when a network flips online state
type NetworkStatusEvent struct {
	Network     string `json:"network"`
	Online      bool   `json:"online"`
	BlockHeight int64  `json:"blockHeight"`
	Timestamp   int64  `json:"timestamp"`
}

// InitNATSServices wires the publisher once. When no NATS URL is
// configured the bridge runs standalone and every publish becomes a no-op.
func InitNATSServices() {
	natsOnce.Do(func() {
		if config.AppConfig == nil || config.AppConfig.NATS.URL == "" {
			log.Printf("⚠️ NATS not configured, event publishing disabled")
			return
		}

		streamName := config.AppConfig.NATS.StreamName
		if streamName == "" {
			streamName = "BRIDGE_EVENTS"
		}

		client, err := clients.NewNATSClient(config.AppConfig.NATS.URL, streamName)
		if err != nil {
			log.Printf("❌ NATS initialization failed, event publishing disabled: %v", err)
			return
		}
		natsClient = client
		log.Printf("✅ NATS event publisher initialized")
	})
}

// CloseNATSServices closes the publisher connection
func CloseNATSServices() {
	if natsClient != nil {
		natsClient.Close()
	}
}

func publish(subject string, payload interface{}) {
	if natsClient == nil {
		return
	}
	if err := natsClient.Publish(subject, payload); err != nil {
		log.Printf("❌ Failed to publish %s: %v", subject, err)
	}
}

// PublishDepositDetected announces a newly observed deposit
func PublishDepositDetected(depositID, userID, network, txHash, tokenSymbol string, amount decimal.Decimal) {
	publish(SubjectDepositDetected, DepositEvent{
		DepositID:   depositID,
		UserID:      userID,
		Network:     network,
		TxHash:      txHash,
		TokenSymbol: tokenSymbol,
		Amount:      amount.String(),
		Timestamp:   time.Now().Unix(),
	})
}

// PublishDepositSettled announces a minted and credited deposit
func PublishDepositSettled(depositID, userID, network, txHash, tokenSymbol, wrappedSymbol string, amount, wrappedAmount decimal.Decimal) {
	publish(SubjectDepositSettled, DepositEvent{
		DepositID:     depositID,
		UserID:        userID,
		Network:       network,
		TxHash:        txHash,
		TokenSymbol:   tokenSymbol,
		Amount:        amount.String(),
		WrappedSymbol: wrappedSymbol,
		WrappedAmount: wrappedAmount.String(),
		Timestamp:     time.Now().Unix(),
	})
}

// PublishWithdrawalCompleted announces a confirmed native send
func PublishWithdrawalCompleted(withdrawalID, userID, network, toAddress, tokenSymbol, txHash string, amount decimal.Decimal) {
	publish(SubjectWithdrawalCompleted, WithdrawalEvent{
		WithdrawalID: withdrawalID,
		UserID:       userID,
		Network:      network,
		ToAddress:    toAddress,
		TokenSymbol:  tokenSymbol,
		Amount:       amount.String(),
		TxHash:       txHash,
		Timestamp:    time.Now().Unix(),
	})
}

// PublishWithdrawalFailed announces a terminal withdrawal failure
func PublishWithdrawalFailed(withdrawalID, userID, network, toAddress, tokenSymbol, errMsg string, amount decimal.Decimal) {
	publish(SubjectWithdrawalFailed, WithdrawalEvent{
		WithdrawalID: withdrawalID,
		UserID:       userID,
		Network:      network,
		ToAddress:    toAddress,
		TokenSymbol:  tokenSymbol,
		Amount:       amount.String(),
		Error:        errMsg,
		Timestamp:    time.Now().Unix(),
	})
}

// PublishNetworkStatus announces a network probe result
func PublishNetworkStatus(network string, online bool, blockHeight int64) {
	publish(SubjectNetworkStatus, NetworkStatusEvent{
		Network:     network,
		Online:      online,
		BlockHeight: blockHeight,
		Timestamp:   time.Now().Unix(),
	})
}
