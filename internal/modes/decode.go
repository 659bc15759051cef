package modes

// Decode turns a raw 2/7/14-byte frame into a Message: Mode A/C for a
// 2-byte payload, otherwise a Mode S field decode dispatched on the
// downlink format. The caller is responsible for framing; Decode never
// looks past len(payload).
func Decode(payload []byte) Message {
	msg := Message{Payload: append([]byte(nil), payload...)}

	if len(payload) == 2 {
		msg.DF = DFModeAC
		addr := uint32(payload[0])<<8 | uint32(payload[1])
		msg.Address = &addr
		msg.Valid = true
		return msg
	}

	df := (payload[0] >> 3) & 0x1F
	msg.DF = df

	wantLen := 14
	if df < 16 {
		wantLen = 7
	}
	if len(payload) != wantLen {
		return msg
	}

	residual := Residual(payload)
	msg.CRCResidual = &residual

	switch df {
	case 0, 4, 16, 20:
		addr := residual & 0xFFFFFF
		msg.Address = &addr
		msg.Valid = true
		ac := (uint16(payload[2]&0x1F) << 8) | uint16(payload[3])
		if alt, ok := DecodeAC13(ac); ok {
			msg.Altitude = &alt
		}

	case 5, 21, 24:
		addr := residual & 0xFFFFFF
		msg.Address = &addr
		msg.Valid = true

	case 11:
		msg.Valid = residual&^uint32(0x7F) == 0
		if msg.Valid {
			addr := uint32(payload[1])<<16 | uint32(payload[2])<<8 | uint32(payload[3])
			msg.Address = &addr
		}

	case 17:
		msg.Valid = residual == 0
		if msg.Valid {
			decodeExtendedSquitter(&msg, payload)
		}

	case 18:
		msg.Valid = residual == 0
		if msg.Valid {
			decodeExtendedSquitter(&msg, payload)
		}

	default:
		// leave defaults: DF not in the set this decoder understands.
	}

	return msg
}

// decodeExtendedSquitter fills in the address, NUCp, CPR flags and AC12
// altitude shared by DF17 and DF18 frames. msg.Valid must already be true.
func decodeExtendedSquitter(msg *Message, payload []byte) {
	addr := uint32(payload[1])<<16 | uint32(payload[2])<<8 | uint32(payload[3])
	msg.Address = &addr

	metype := payload[4] >> 3
	switch {
	case metype >= 9 && metype <= 18:
		msg.NUC = 18 - metype
	case metype >= 20 && metype < 22:
		msg.NUC = 29 - metype
	case metype == 22:
		msg.NUC = 0
	default:
		return
	}

	if payload[6]&0x04 != 0 {
		msg.OddCPR = true
	} else {
		msg.EvenCPR = true
	}

	ac := (uint16(payload[5]) << 4) | uint16(payload[6]&0xF0)>>4
	if alt, ok := DecodeAC12(ac); ok {
		msg.Altitude = &alt
	}

	lat15 := (uint32(payload[7]) << 7) | (uint32(payload[8]) >> 1)
	lon15 := (uint32(payload[9]) << 7) | (uint32(payload[10]) >> 1)
	if lat15&0x7FFF == 0 || lon15&0x7FFF == 0 {
		// Treat all-zero CPR content as implausible (spec.md's stricter,
		// canonical reading of the both-halves-zero invalidation rule;
		// see DESIGN.md Open Question 1).
		msg.Valid = false
		msg.EvenCPR = false
		msg.OddCPR = false
	}
}
