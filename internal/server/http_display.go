package server

import "fmt"

// displayServerInfo shows server configuration information
func (s *Server) displayServerInfo() {
	s.displayEndpoints()
	s.displayRequestLimitInfo()
	s.displayRateLimitInfo()
}

// displayEndpoints shows available API endpoints
func (s *Server) displayEndpoints() {
	fmt.Println("Available endpoints:")
	fmt.Println("  GET  /health             - Health check")
	fmt.Println("  GET  /stats              - Server statistics")
	fmt.Println("  POST /documents          - Upload a source document")
	fmt.Println("  GET  /documents          - List source documents")
	fmt.Println("  GET  /documents/current  - Current document by type")
	fmt.Println("  POST /jobs               - Submit a job description")
	fmt.Println("  GET  /jobs               - List job descriptions")
	fmt.Println("  GET  /jobs/{id}          - Fetch a job description")
	fmt.Println("  POST /optimize           - Run the optimization pipeline")
	fmt.Println("  GET  /optimizations      - List optimizations")
	fmt.Println("  GET  /optimizations/{id} - Fetch an optimization")
	fmt.Println("  POST /render             - Render a document to PDF")
	fmt.Println("  GET  /settings           - Fetch user settings")
	fmt.Println("  PUT  /settings           - Update user settings")
	fmt.Println("All endpoints except /health and /stats require a bearer token.")
}

// displayRequestLimitInfo shows request size limit configuration
func (s *Server) displayRequestLimitInfo() {
	if s.MaxRequestSize <= 0 {
		fmt.Println("Request size limit: DISABLED")
		fmt.Println("WARNING: No request size limits configured!")
		return
	}
	fmt.Printf("Request size limit: %d bytes (%.1f MB)\n",
		s.MaxRequestSize, float64(s.MaxRequestSize)/(1024*1024))
}

// displayRateLimitInfo shows rate limiting configuration
func (s *Server) displayRateLimitInfo() {
	if s.RateLimit == nil || !s.RateLimit.Enabled {
		fmt.Println("Rate limiting: DISABLED")
		fmt.Println("WARNING: No rate limiting configured!")
		return
	}

	fmt.Printf("Rate limiting: ENABLED (%d requests/min, burst: %d)\n",
		s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
	if s.RateLimit.ByUser {
		fmt.Println("  - Per user rate limiting enabled")
	}
	if s.RateLimit.ByIP {
		fmt.Println("  - Per IP address rate limiting enabled")
	}
}
