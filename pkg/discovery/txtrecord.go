package discovery

import (
	"fmt"
	"sort"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeInstrumentTXT creates TXT records for an advertised instrument.
// Empty fields are omitted.
func EncodeInstrumentTXT(info *InstrumentInfo) TXTRecordMap {
	txt := make(TXTRecordMap)
	set := func(k, v string) {
		if v != "" {
			txt[k] = v
		}
	}
	set(TXTKeyManufacturer, info.Manufacturer)
	set(TXTKeyModel, info.Model)
	set(TXTKeySerial, info.Serial)
	set(TXTKeyFirmware, info.Firmware)
	return txt
}

// get looks up key ignoring case; vendors disagree on capitalization.
func (t TXTRecordMap) get(key string) string {
	if v, ok := t[key]; ok {
		return v
	}
	for k, v := range t {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// TXTRecordsToStrings converts a TXTRecordMap to sorted "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, _ := strings.Cut(s, "=")
		if k != "" {
			txt[k] = v
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInstanceNameTooLong)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
