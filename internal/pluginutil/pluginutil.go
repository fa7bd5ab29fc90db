// Package pluginutil holds the dated-logfile/instance-scoped helpers and
// RADIUS attribute rendering shared by the plugins package and its
// subpackages. It exists as a separate package so that plugin
// subpackages (logdump, trace, usermac) can use these helpers without
// importing the plugins package itself, which would create an import
// cycle (plugins imports the subpackages to implement its registry).
package pluginutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"layeh.com/radius"
	. "layeh.com/radius/rfc2865"
)

// Context is the subset of runtime/config state a hook's constructor
// needs, mirroring the teacher's PluginContext.
type Context struct {
	Logs     string
	Lib      string
	Instance string
	Cache    bool
}

// DatedFile opens (creating if needed) today's log file for the given
// mode under dir, named the way the teacher's plugins name theirs.
func DatedFile(dir, name, instance string) (*os.File, time.Time) {
	t := time.Now()
	base := fmt.Sprintf("radiucal.%s.%s", name, t.Format("2006-01-02"))
	if instance != "" {
		base = fmt.Sprintf("radiucal.%s.%s.%s", instance, name, t.Format("2006-01-02"))
	}
	f, err := os.OpenFile(filepath.Join(dir, base), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0660)
	if err != nil {
		return nil, t
	}
	return f, t
}

// FormatLog appends one timestamped, indicator-tagged line.
func FormatLog(f *os.File, t time.Time, indicator, message string) {
	f.WriteString(fmt.Sprintf("%s [%s] %s\n", t.Format("2006-01-02T15:04:05"), strings.ToUpper(indicator), message))
}

// KeyValueStrings decodes buf as a structured RADIUS packet (best-effort:
// only the framing is checked, so secret may be wrong or absent; a buffer
// that does not decode yields a single line giving its byte count and the
// decode error) and renders every attribute as
// "Type: ..."/"Value: ..." line pairs, for the trace/log hooks.
func KeyValueStrings(buf []byte, secret string) []string {
	p, err := radius.Parse(buf, []byte(secret))
	if err != nil {
		return []string{fmt.Sprintf("(undecodable packet, %d bytes: %v)", len(buf), err)}
	}
	var datum []string
	for _, avp := range p.Attributes {
		datum = append(datum, fmt.Sprintf("Type: %d (%s)", avp.Type, resolveType(avp.Type)))
		datum = append(datum, fmt.Sprintf("Value: %s", renderValue(avp.Type, avp.Attribute)))
	}
	return datum
}

func renderValue(t radius.Type, s radius.Attribute) string {
	if t == NASIPAddress_Type {
		if ip, err := radius.IPAddr(s); err == nil {
			return fmt.Sprintf("(ip) %s", ip.String())
		}
	}
	if i, err := radius.Integer(s); err == nil {
		return fmt.Sprintf("(int) %d", i)
	}
	if d, err := radius.Date(s); err == nil {
		return fmt.Sprintf("(time) %s", d.Format(time.RFC3339))
	}
	val := string(s)
	printable := true
	for _, c := range val {
		if !unicode.IsPrint(c) {
			printable = false
			break
		}
	}
	if printable {
		return val
	}
	return fmt.Sprintf("(hex) %x", []byte(s))
}

func resolveType(t radius.Type) string {
	switch t {
	case UserName_Type:
		return "User-Name"
	case UserPassword_Type:
		return "User-Password"
	case CHAPPassword_Type:
		return "CHAP-Password"
	case NASIPAddress_Type:
		return "NAS-IP-Address"
	case NASPort_Type:
		return "NAS-Port"
	case ServiceType_Type:
		return "Service-Type"
	case FramedProtocol_Type:
		return "Framed-Protocol"
	case FramedIPAddress_Type:
		return "Framed-IP-Address"
	case FramedIPNetmask_Type:
		return "Framed-IP-Netmask"
	case FramedRouting_Type:
		return "Framed-Routing"
	case FilterID_Type:
		return "Filter-ID"
	case FramedMTU_Type:
		return "Framed-MTU"
	case FramedCompression_Type:
		return "Framed-Compression"
	case LoginIPHost_Type:
		return "Login-IP-Host"
	case LoginService_Type:
		return "Login-Service"
	case LoginTCPPort_Type:
		return "Login-TCP-Port"
	case ReplyMessage_Type:
		return "Reply-Message"
	case CallbackNumber_Type:
		return "Callback-Number"
	case CallbackID_Type:
		return "Callback-ID"
	case FramedRoute_Type:
		return "Framed-Route"
	case FramedIPXNetwork_Type:
		return "Framed-IPX-Network"
	case State_Type:
		return "State"
	case Class_Type:
		return "Class"
	case VendorSpecific_Type:
		return "Vendor-Specific"
	case SessionTimeout_Type:
		return "Session-Timeout"
	case IdleTimeout_Type:
		return "Idle-Timeout"
	case TerminationAction_Type:
		return "Termination-Action"
	case CalledStationID_Type:
		return "Called-Station-ID"
	case CallingStationID_Type:
		return "Calling-Station-ID"
	case NASIdentifier_Type:
		return "NAS-Identifier"
	case ProxyState_Type:
		return "Proxy-State"
	case LoginLATService_Type:
		return "Login-LAT-Service"
	case LoginLATNode_Type:
		return "Login-LAT-Node"
	case LoginLATGroup_Type:
		return "Login-LAT-Group"
	case FramedAppleTalkLink_Type:
		return "Framed-Apple-Talk-Link"
	case FramedAppleTalkNetwork_Type:
		return "Framed-Apple-Talk-Network"
	case FramedAppleTalkZone_Type:
		return "Framed-Apple-Talk-Zone"
	case CHAPChallenge_Type:
		return "CHAP-Challenge"
	case NASPortType_Type:
		return "NAS-Port-Type"
	case PortLimit_Type:
		return "Port-Limit"
	case LoginLATPort_Type:
		return "Login-LAT-Port"
	}
	return "Unknown"
}
