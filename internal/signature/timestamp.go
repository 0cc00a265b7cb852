package signature

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.mozilla.org/pkcs7"
)

var (
	oidCounterSignature    = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 6}
	oidRFC3161Timestamp    = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 3, 3, 1}
	errNoSigningTime       = errors.New("signature carries no signing time")
	errTimestampWithoutGen = errors.New("timestamp token has no generation time")
)

type attribute struct {
	Type  asn1.ObjectIdentifier
	Value asn1.RawValue `asn1:"set"`
}

// counterSignerInfo is the prefix of a PKCS#9 countersignature SignerInfo up
// to the authenticated attributes.
type counterSignerInfo struct {
	Version                 int
	IssuerAndSerialNumber   asn1.RawValue
	DigestAlgorithm         pkix.AlgorithmIdentifier
	AuthenticatedAttributes []attribute `asn1:"optional,omitempty,tag:0"`
}

// tstInfo is the prefix of an RFC 3161 TSTInfo up to genTime.
type tstInfo struct {
	Version        int
	Policy         asn1.ObjectIdentifier
	MessageImprint asn1.RawValue
	SerialNumber   *big.Int
	GenTime        time.Time `asn1:"generalized"`
}

// SigningTime returns the UTC signing time of a DER PKCS#7 SignedData blob.
func SigningTime(der []byte) (time.Time, error) {
	p7, err := pkcs7.Parse(der)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse pkcs7: %w", err)
	}

	var signed time.Time
	if err := p7.UnmarshalSignedAttribute(pkcs7.OIDAttributeSigningTime, &signed); err == nil && !signed.IsZero() {
		return signed.UTC(), nil
	}

	for _, signer := range p7.Signers {
		for _, attr := range signer.UnauthenticatedAttributes {
			var (
				t   time.Time
				err error
			)
			switch {
			case attr.Type.Equal(oidCounterSignature):
				t, err = counterSignatureTime(attr.Value.Bytes)
			case attr.Type.Equal(oidRFC3161Timestamp):
				t, err = timestampTokenTime(attr.Value.Bytes)
			default:
				continue
			}
			if err == nil && !t.IsZero() {
				return t.UTC(), nil
			}
		}
	}
	return time.Time{}, errNoSigningTime
}

func counterSignatureTime(der []byte) (time.Time, error) {
	var info counterSignerInfo
	if _, err := asn1.Unmarshal(der, &info); err != nil {
		return time.Time{}, fmt.Errorf("parse countersignature: %w", err)
	}
	for _, attr := range info.AuthenticatedAttributes {
		if !attr.Type.Equal(pkcs7.OIDAttributeSigningTime) {
			continue
		}
		var t time.Time
		if _, err := asn1.Unmarshal(attr.Value.Bytes, &t); err != nil {
			return time.Time{}, fmt.Errorf("parse countersignature time: %w", err)
		}
		return t, nil
	}
	return time.Time{}, errNoSigningTime
}

func timestampTokenTime(der []byte) (time.Time, error) {
	token, err := pkcs7.Parse(der)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp token: %w", err)
	}
	var info tstInfo
	if _, err := asn1.Unmarshal(token.Content, &info); err != nil {
		return time.Time{}, fmt.Errorf("parse tstinfo: %w", err)
	}
	if info.GenTime.IsZero() {
		return time.Time{}, errTimestampWithoutGen
	}
	return info.GenTime, nil
}
