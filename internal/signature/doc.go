// Package signature reads the signing time out of Authenticode and detached
// PKCS#7 signatures.
//
// Three containers are understood: the security directory of PE images, the
// base64 signature block appended to Windows scripts, and bare DER blobs such
// as security catalogs. The signer's signing-time attribute is preferred; when
// the signer carries none, the countersignature or RFC 3161 timestamp token
// attached to it supplies the date.
package signature
