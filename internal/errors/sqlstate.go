/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package errors

// SQLSTATE is the five character state code reported to drivers.
type SQLSTATE string

const (
	SQLStateSuccess             SQLSTATE = "00000"
	SQLStateNumericOutOfRange   SQLSTATE = "22003"
	SQLStateDivisionByZero      SQLSTATE = "22012"
	SQLStateInvalidValue        SQLSTATE = "22018"
	SQLStateSequenceExhausted   SQLSTATE = "2200H"
	SQLStateUndefinedObject     SQLSTATE = "42704"
	SQLStateUndefinedTable      SQLSTATE = "42P01"
	SQLStateInvalidSchema       SQLSTATE = "3F000"
	SQLStateDuplicateObject     SQLSTATE = "42710"
	SQLStateDependentObjects    SQLSTATE = "2BP01"
	SQLStateInsufficientPriv    SQLSTATE = "42501"
	SQLStateInvalidAuth         SQLSTATE = "28000"
	SQLStateLockNotAvailable    SQLSTATE = "55P03"
	SQLStateNoActiveTransaction SQLSTATE = "25P01"
	SQLStateIOError             SQLSTATE = "58030"
	SQLStateOutOfMemory         SQLSTATE = "53200"
	SQLStateInternal            SQLSTATE = "XX000"
)

// ToSQLSTATE maps an error code to its SQLSTATE.
func ToSQLSTATE(code ErrorCode) SQLSTATE {
	switch code {
	case ErrCodeNumericOverflow:
		return SQLStateNumericOutOfRange
	case ErrCodeDivisionByZero:
		return SQLStateDivisionByZero
	case ErrCodeInvalidValue:
		return SQLStateInvalidValue
	case ErrCodeSequenceExhausted:
		return SQLStateSequenceExhausted
	case ErrCodeObjectNotFound:
		return SQLStateUndefinedObject
	case ErrCodeSchemaNotFound:
		return SQLStateInvalidSchema
	case ErrCodeObjectAlreadyExists:
		return SQLStateDuplicateObject
	case ErrCodeCannotDrop:
		return SQLStateDependentObjects
	case ErrCodePermissionDenied, ErrCodeAdminRequired:
		return SQLStateInsufficientPriv
	case ErrCodeAuthFailed:
		return SQLStateInvalidAuth
	case ErrCodeLockTimeout:
		return SQLStateLockNotAvailable
	case ErrCodeTxNotActive, ErrCodeTxClosed:
		return SQLStateNoActiveTransaction
	case ErrCodeStorage, ErrCodeWALCorrupted, ErrCodeIOError:
		return SQLStateIOError
	case ErrCodeOutOfMemory:
		return SQLStateOutOfMemory
	default:
		return SQLStateInternal
	}
}
