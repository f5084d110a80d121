// Copyright 2024 The pegjs Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package bytecode

// Opcode is a single VM instruction tag. Instructions are stored as a flat
// []int stream per rule: the opcode followed by its operands. Conditional
// opcodes carry the lengths of their then/else regions, which the
// interpreter executes as nested sub-ranges of the same stream.
type Opcode int

const (
	// OpPushCurrPos pushes the current input cursor onto the value stack.
	OpPushCurrPos Opcode = iota
	// OpPop discards the top of the value stack.
	OpPop
	// OpPopCurrPos pops the top of the value stack into the input cursor.
	OpPopCurrPos
	// OpPopN n discards the top n values.
	OpPopN
	// OpNip removes the value directly below the top of the stack.
	OpNip
	// OpLoad k pushes the constant at pool index k. Sentinel constants
	// (null, undefined, the failure marker, a fresh empty array) are pool
	// entries like any other.
	OpLoad
	// OpMatchString k pushes whether the input at the cursor starts with
	// string constant k, case-sensitively. Consumes nothing.
	OpMatchString
	// OpMatchStringIC is OpMatchString ignoring case.
	OpMatchStringIC
	// OpMatchClass k pushes whether the code point at the cursor matches
	// class constant k. Consumes nothing.
	OpMatchClass
	// OpMatchAny pushes whether the cursor is before end of input.
	OpMatchAny
	// OpMatchEnd pushes whether the cursor is at end of input.
	OpMatchEnd
	// OpAcceptN n consumes n code points and pushes the consumed text.
	OpAcceptN
	// OpAcceptString k consumes len(constant k) code points and pushes
	// string constant k.
	OpAcceptString
	// OpFail k pushes the failure marker and records expectation constant
	// k at the current cursor (unless failures are silenced).
	OpFail
	// OpIf thenLen elseLen pops the top value; truthy selects the then
	// region, otherwise the else region.
	OpIf
	// OpIfNot is OpIf with the branches swapped.
	OpIfNot
	// OpIfError thenLen elseLen peeks at the top value (leaving it in
	// place); the failure marker selects the then region.
	OpIfError
	// OpIfNotError is OpIfError with the branches swapped.
	OpIfNotError
	// OpIfArrlenMin min thenLen elseLen peeks at the top value; an array
	// of at least min elements selects the then region.
	OpIfArrlenMin
	// OpWhileNotError bodyLen repeats the body region while the top of
	// the stack is not the failure marker.
	OpWhileNotError
	// OpAppend pops the top value and appends it to the array beneath.
	OpAppend
	// OpWrap n pops n values and pushes them as one array in stack order.
	OpWrap
	// OpText pops a saved cursor and pushes the input text between it and
	// the current cursor.
	OpText
	// OpCall ruleIdx argc args... invokes another rule directly,
	// forwarding argc stack depths as arguments.
	OpCall
	// OpRule ruleIdx invokes another rule through the external entry
	// path: the fast-fail cache is consulted and updated. The generator
	// emits OpRule for calls that enter a recursive rule group from
	// outside, and OpCall within a group.
	OpRule
	// OpSilentFailsOn suppresses expectation recording (nestable).
	OpSilentFailsOn
	// OpSilentFailsOff re-enables expectation recording.
	OpSilentFailsOff
	// OpExecute k argc argDepths... runs code constant k with argc
	// arguments resolved at the given depths from the top of the stack,
	// and pushes the returned value.
	OpExecute
	// OpLoadSavedPos n sets the action-visible saved position from the
	// stack value n below the top.
	OpLoadSavedPos
	// OpRollbackMark records the rollback-hook stack height.
	OpRollbackMark
	// OpRollbackCommit discards hooks registered since the mark.
	OpRollbackCommit
	// OpRollbackFire runs hooks registered since the mark, newest first.
	OpRollbackFire
)

var opcodeNames = map[Opcode]string{
	OpPushCurrPos:    "PUSH_CURR_POS",
	OpPop:            "POP",
	OpPopCurrPos:     "POP_CURR_POS",
	OpPopN:           "POP_N",
	OpNip:            "NIP",
	OpLoad:           "LOAD",
	OpMatchString:    "MATCH_STRING",
	OpMatchStringIC:  "MATCH_STRING_IC",
	OpMatchClass:     "MATCH_CLASS",
	OpMatchAny:       "MATCH_ANY",
	OpMatchEnd:       "MATCH_END",
	OpAcceptN:        "ACCEPT_N",
	OpAcceptString:   "ACCEPT_STRING",
	OpFail:           "FAIL",
	OpIf:             "IF",
	OpIfNot:          "IF_NOT",
	OpIfError:        "IF_ERROR",
	OpIfNotError:     "IF_NOT_ERROR",
	OpIfArrlenMin:    "IF_ARRLEN_MIN",
	OpWhileNotError:  "WHILE_NOT_ERROR",
	OpAppend:         "APPEND",
	OpWrap:           "WRAP",
	OpText:           "TEXT",
	OpCall:           "CALL",
	OpRule:           "RULE",
	OpSilentFailsOn:  "SILENT_FAILS_ON",
	OpSilentFailsOff: "SILENT_FAILS_OFF",
	OpExecute:        "EXECUTE",
	OpLoadSavedPos:   "LOAD_SAVED_POS",
	OpRollbackMark:   "ROLLBACK_MARK",
	OpRollbackCommit: "ROLLBACK_COMMIT",
	OpRollbackFire:   "ROLLBACK_FIRE",
}

func (op Opcode) String() string {
	if s, ok := opcodeNames[op]; ok {
		return s
	}
	return "UNKNOWN"
}
