package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gabapcia/escrowledger/internal/escrow"

	"github.com/redis/go-redis/v9"
)

// escrowKeyPrefix is the namespace prefix for all escrow agreement keys.
const escrowKeyPrefix = "escrow"

// escrowAgreementKey builds the key holding an agreement record as JSON.
//
// Format: "escrow:agreement:<contractAddress>"
func escrowAgreementKey(contractAddress string) string {
	return fmt.Sprintf("%s:agreement:%s", escrowKeyPrefix, contractAddress)
}

// escrowParticipantKey builds the key of the sorted set indexing the
// agreements an address participates in, scored by creation time.
//
// Format: "escrow:participant:<address>"
func escrowParticipantKey(address string) string {
	return fmt.Sprintf("%s:participant:%s", escrowKeyPrefix, address)
}

// agreementTransitionScript compares the persisted status against the
// expected one and rewrites the record in a single atomic step, so two
// concurrent transitions from the same status cannot both succeed. It
// returns the updated JSON, or false when the key is missing or the status
// no longer matches.
var agreementTransitionScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then
	return false
end

local record = cjson.decode(raw)
if record.status ~= ARGV[1] then
	return false
end

record.status = ARGV[2]
if ARGV[3] ~= "" then
	record.settlementTxHash = ARGV[3]
end

local updated = cjson.encode(record)
redis.call("SET", KEYS[1], updated)
return updated
`)

// SaveAgreement implements the escrow.AgreementStorage interface.
//
// Like transfers, the record is written with SETNX and only the winning
// writer populates the three participant indexes.
func (c *client) SaveAgreement(ctx context.Context, record escrow.AgreementRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	created, err := c.conn.SetNX(ctx, escrowAgreementKey(record.ContractAddress), data, 0).Result()
	if err != nil {
		return err
	}
	if !created {
		return escrow.ErrDuplicateAgreement
	}

	score := float64(record.CreatedAt.Unix())
	member := redis.Z{Score: score, Member: record.ContractAddress}

	participants := map[string]struct{}{
		record.Depositor:   {},
		record.Arbiter:     {},
		record.Beneficiary: {},
	}

	_, err = c.conn.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for participant := range participants {
			pipe.ZAdd(ctx, escrowParticipantKey(participant), member)
		}
		return nil
	})
	return err
}

// GetAgreement implements the escrow.AgreementStorage interface.
func (c *client) GetAgreement(ctx context.Context, contractAddress string) (escrow.AgreementRecord, error) {
	data, err := c.conn.Get(ctx, escrowAgreementKey(contractAddress)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			err = escrow.ErrAgreementNotFound
		}
		return escrow.AgreementRecord{}, err
	}

	var record escrow.AgreementRecord
	return record, json.Unmarshal(data, &record)
}

// ListAgreementsByParticipant implements the escrow.AgreementStorage interface.
func (c *client) ListAgreementsByParticipant(ctx context.Context, participant string) ([]escrow.AgreementRecord, error) {
	addresses, err := c.conn.ZRevRange(ctx, escrowParticipantKey(participant), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	records := make([]escrow.AgreementRecord, 0, len(addresses))
	for _, contractAddress := range addresses {
		record, err := c.GetAgreement(ctx, contractAddress)
		if err != nil {
			if errors.Is(err, escrow.ErrAgreementNotFound) {
				continue
			}
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// UpdateAgreementStatus implements the escrow.AgreementStorage interface.
func (c *client) UpdateAgreementStatus(ctx context.Context, contractAddress string, from, to escrow.Status, settlementTxHash string) (escrow.AgreementRecord, error) {
	keys := []string{escrowAgreementKey(contractAddress)}

	raw, err := agreementTransitionScript.Run(ctx, c.conn, keys, string(from), string(to), settlementTxHash).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			err = escrow.ErrAgreementNotFound
		}
		return escrow.AgreementRecord{}, err
	}

	var record escrow.AgreementRecord
	return record, json.Unmarshal([]byte(raw), &record)
}

// Compile-time assertion to ensure *client satisfies the escrow.AgreementStorage interface
var _ escrow.AgreementStorage = new(client)
