package server

import (
	"net"
	"net/http"
	"strings"
)

// ------------------------------------------------------------
// callerIP:
//
// 로그에 남길 호출자 주소.
// central 은 API destination / ALB 뒤에 있으므로 프록시가 붙인 헤더를 먼저 본다.
// 우선순위:
//  1. X-Forwarded-For 의 첫 번째 유효 IP (원 호출자)
//  2. X-Real-IP
//  3. RemoteAddr
//
// 인증 용도가 아니라 추적 용도이므로 private 대역도 그대로 돌려준다.
// ------------------------------------------------------------
func callerIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if ip := parseIP(part); ip != nil {
				return ip.String()
			}
		}
	}

	if ip := parseIP(r.Header.Get("X-Real-IP")); ip != nil {
		return ip.String()
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := parseIP(host); ip != nil {
		return ip.String()
	}
	return ""
}

// parseIP: 공백/빈 값이면 nil
func parseIP(s string) net.IP {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return net.ParseIP(s)
}
