package errors

import "errors"

var ErrorKeyNotFound = errors.New("key.notFound")
var ErrorWrongType = errors.New("key.wrongType")
var ErrorNotInteger = errors.New("value.notInteger")
var ErrorNotANumber = errors.New("value.notANumber")
var ErrorIndexOutOfRange = errors.New("index.outOfRange")
var ErrorUnknownEntryType = errors.New("snapshot.unknownEntryType")
var ErrorCorruptSnapshot = errors.New("snapshot.corrupt")
var ErrorKeyMismatch = errors.New("snapshot.keyMismatch")
var ErrorSubscriptionCancelled = errors.New("subscription.cancelled")
var ErrorStreamingUnsupported = errors.New("command.streamingUnsupported")
var ErrorInvalidSaveRule = errors.New("config.invalidSaveRule")
