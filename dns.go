// Copyright 2020 vireo developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package vireo

import (
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/glendc/go-external-ip"
	"github.com/miekg/dns"
	"github.com/seiflotfy/cuckoofilter"
)

// TXTResolver looks up the DNS TXT records published under a name. The
// default implementation is DNSResolver; tests substitute their own.
type TXTResolver interface {
	LookupTXT(name string) ([]string, error)
}

// DefaultDNSServers answer checkpoint TXT queries when the caller doesn't
// name its own resolvers.
var DefaultDNSServers = [...]string{
	"8.8.8.8:53",
	"8.8.4.4:53",
	"1.1.1.1:53",
	"9.9.9.9:53",
}

// DNSResolver fetches TXT records by querying public DNS servers directly,
// sidestepping whatever resolver the host happens to be configured with.
type DNSResolver struct {
	servers []string
}

// NewDNSResolver returns a resolver using the given "host:port" DNS
// servers, or DefaultDNSServers if none are given.
func NewDNSResolver(servers ...string) *DNSResolver {
	if len(servers) == 0 {
		servers = DefaultDNSServers[:]
	}
	return &DNSResolver{servers: servers}
}

// LookupTXT returns name's TXT records from the first server that answers
// with any. Records split into multiple character strings are joined.
func (r *DNSResolver) LookupTXT(name string) ([]string, error) {
	var lastErr error
	for _, server := range r.servers {
		c := dns.Client{Timeout: DNS_QUERY_TIMEOUT * time.Second}
		m := dns.Msg{}
		m.SetQuestion(dns.Fqdn(name), dns.TypeTXT)
		log.Printf("Querying DNS server %s for %s\n", server, name)
		in, _, err := c.Exchange(&m, server)
		if err != nil {
			log.Printf("Error querying DNS server: %s, error: %s\n", server, err)
			lastErr = err
			continue
		}
		var records []string
		for _, answer := range in.Answer {
			txt, ok := answer.(*dns.TXT)
			if !ok {
				continue
			}
			records = append(records, strings.Join(txt.Txt, ""))
		}
		if len(records) != 0 {
			return records, nil
		}
	}
	return nil, lastErr
}

// CheckpointSeeder answers DNS TXT queries under the network's checkpoint
// domain with the authority's current pins, newest first. It's the serving
// half of what LoadCheckpointsFromDNS consumes.
type CheckpointSeeder struct {
	source     CheckpointSource
	network    NetworkType
	server     *dns.Server
	port       int
	filter     *cuckoo.Filter
	filterLock sync.Mutex
	wg         sync.WaitGroup
}

// NewCheckpointSeeder creates a new seeder serving the given source's pins.
func NewCheckpointSeeder(source CheckpointSource, network NetworkType, port int) *CheckpointSeeder {
	return &CheckpointSeeder{
		source:  source,
		network: network,
		port:    port,
		server:  &dns.Server{Addr: "0.0.0.0:" + strconv.Itoa(port), Net: "udp"},
		filter:  cuckoo.NewFilter(1 << 16),
	}
}

func (s *CheckpointSeeder) handleQuery(m *dns.Msg) {
	for _, q := range m.Question {
		switch q.Qtype {
		case dns.TypeTXT:
			points := s.source.Points()
			heights := sortedHeights(points)

			// return the newest pins; older history comes from files or the feed
			count := 0
			for i := len(heights) - 1; i >= 0 && count < MAX_DNS_CHECKPOINT_RECORDS; i-- {
				record := fmt.Sprintf("%d:%s", heights[i], points[heights[i]])
				rr, err := dns.NewRR(fmt.Sprintf("%s %d IN TXT %q", q.Name, DNS_RECORD_TTL, record))
				if err != nil {
					log.Printf("Error building TXT record: %s\n", err)
					continue
				}
				m.Answer = append(m.Answer, rr)
				count++
			}
		}
	}
}

// Log each resolver host the first time it queries us. Useful for judging
// how widely the records propagate.
func (s *CheckpointSeeder) trackQuerier(addr string) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return
	}
	s.filterLock.Lock()
	newHost := s.filter.InsertUnique([]byte(host))
	count := s.filter.Count()
	s.filterLock.Unlock()
	if newHost {
		log.Printf("Answering new resolver %s, %d seen since startup\n", host, count)
	}
}

// Run executes the main loop for the CheckpointSeeder in its own goroutine.
func (s *CheckpointSeeder) Run() {
	s.wg.Add(1)
	go s.run()
}

func (s *CheckpointSeeder) run() {
	defer s.wg.Done()

	handleDnsRequest := func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		m.Compress = false

		switch r.Opcode {
		case dns.OpcodeQuery:
			s.trackQuerier(w.RemoteAddr().String())
			s.handleQuery(m)
		}

		w.WriteMsg(m)
	}

	dns.HandleFunc(dns.Fqdn(s.network.CheckpointDomain()), handleDnsRequest)
	log.Printf("Starting checkpoint DNS server for %s\n", s.network.CheckpointDomain())
	if err := s.server.ListenAndServe(); err != nil {
		log.Println(err)
	}
}

// Shutdown shuts down the checkpoint DNS server.
func (s *CheckpointSeeder) Shutdown() {
	log.Println("Checkpoint seeder shutting down...")
	s.server.Shutdown()
	s.wg.Wait()
	log.Println("Checkpoint seeder shutdown")
}

// DetermineExternalIP asks a consensus of external services for our public
// IP. Seeder operators need it for their NS glue records.
func DetermineExternalIP() (string, error) {
	consensus := externalip.DefaultConsensus(nil, nil)
	ip, err := consensus.ExternalIP()
	if err != nil {
		return "", err
	}
	return ip.String(), nil
}
