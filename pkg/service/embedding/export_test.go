package embedding

func (s *Service) WaitCache() {
	s.waitCache()
}
