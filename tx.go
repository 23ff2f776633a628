package main

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/tlv"
)

// Input is one typed, module-owned input of a Transaction. Payload is the
// module-specific encoding of whatever the module needs to validate it
// (a coin reference, a contract claim, ...); the module alone knows how to
// interpret it.
type Input struct {
	ModuleID ModuleInstanceID
	Payload  []byte
}

// Output is one typed, module-owned output of a Transaction.
type Output struct {
	ModuleID ModuleInstanceID
	Payload  []byte
}

// OutPoint addresses a single output of an accepted transaction.
type OutPoint struct {
	TxID      chainhash.Hash
	OutputIdx uint32
}

// Transaction is an ordered list of inputs and outputs bound together by a
// list of signatures, one per flattened input public key, each covering the
// transaction's txid.
type Transaction struct {
	Inputs     []Input
	Outputs    []Output
	Signatures [][]byte
}

const (
	tlvTypeInputModule  tlv.Type = 0
	tlvTypeInputPayload tlv.Type = 1
	tlvTypeOutputModule tlv.Type = 2
	tlvTypeOutputPayload tlv.Type = 3
)

// encode canonically serializes the transaction's inputs and outputs (but
// not its signatures, which are computed over this encoding) into a TLV
// stream. Two structurally identical transactions always produce the same
// bytes, which is what gives the txid its content-addressed property.
func (tx *Transaction) encode() ([]byte, error) {
	var buf bytes.Buffer

	for _, in := range tx.Inputs {
		record := tlv.MakePrimitiveRecord(tlvTypeInputModule, &in.ModuleID)
		stream, err := tlv.NewStream(record)
		if err != nil {
			return nil, err
		}
		if err := stream.Encode(&buf); err != nil {
			return nil, err
		}

		payload := in.Payload
		payloadRecord := tlv.MakePrimitiveRecord(tlvTypeInputPayload, &payload)
		payloadStream, err := tlv.NewStream(payloadRecord)
		if err != nil {
			return nil, err
		}
		if err := payloadStream.Encode(&buf); err != nil {
			return nil, err
		}
	}

	for _, out := range tx.Outputs {
		record := tlv.MakePrimitiveRecord(tlvTypeOutputModule, &out.ModuleID)
		stream, err := tlv.NewStream(record)
		if err != nil {
			return nil, err
		}
		if err := stream.Encode(&buf); err != nil {
			return nil, err
		}

		payload := out.Payload
		payloadRecord := tlv.MakePrimitiveRecord(tlvTypeOutputPayload, &payload)
		payloadStream, err := tlv.NewStream(payloadRecord)
		if err != nil {
			return nil, err
		}
		if err := payloadStream.Encode(&buf); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// TxID returns the transaction's content-addressed hash. Re-encoding a
// decoded transaction and hashing it again always yields the same txid.
func (tx *Transaction) TxID() (chainhash.Hash, error) {
	encoded, err := tx.encode()
	if err != nil {
		return chainhash.Hash{}, err
	}
	return chainhash.DoubleHashH(encoded), nil
}

// verifySignatures checks that each of the transaction's signatures is a
// valid schnorr signature over the txid, one per flattened public key
// collected from the inputs' ValidateInput outcomes, in order.
func verifySignatures(txid chainhash.Hash, pubKeys [][]byte, sigs [][]byte) error {
	if len(pubKeys) != len(sigs) {
		return badRequest("expected %d signatures, got %d", len(pubKeys), len(sigs))
	}

	for i, rawKey := range pubKeys {
		pubKey, err := schnorr.ParsePubKey(rawKey)
		if err != nil {
			return badRequest("invalid public key at index %d: %v", i, err)
		}

		sig, err := schnorr.ParseSignature(sigs[i])
		if err != nil {
			return badRequest("invalid signature at index %d: %v", i, err)
		}

		if !sig.Verify(txid[:], pubKey) {
			return badRequest("signature verification failed at index %d", i)
		}
	}

	return nil
}
